package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PageInfo describes one page of upstream features.
type PageInfo struct {
	Page     int `json:"page"`
	Limit    int `json:"limit"`
	Returned int `json:"returned"`
}

// SetPageLinks adds RFC 8288 Link headers for page-numbered responses,
// preserving the other query parameters. A full page implies a next page.
func SetPageLinks(c *fiber.Ctx, p PageInfo) {
	if p.Limit <= 0 {
		return
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	for k, v := range c.Queries() {
		q.Set(k, v)
	}
	q.Set("limit", strconv.Itoa(p.Limit))
	link := func(n int, rel string) string {
		q.Set("page", strconv.Itoa(n))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, c.Path(), q.Encode(), rel)
	}

	var links []string
	links = append(links, link(1, "first"))
	if page > 1 {
		links = append(links, link(page-1, "prev"))
	}
	if p.Returned >= p.Limit {
		links = append(links, link(page+1, "next"))
	}

	c.Set("Link", strings.Join(links, ", "))
}
