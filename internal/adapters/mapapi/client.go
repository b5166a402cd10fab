// Package mapapi is a client for the upstream map data API serving building,
// road, junction and weather layers in EPSG:3857.
package mapapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
	"github.com/samirrijal/geolayers/internal/pkg/metrics"
)

// Client implements ports.FeatureSource and ports.WeatherSource.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "geolayers",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
	}
}

type categoriesResponse struct {
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

// Categories lists the categories of the buildings or roads layer.
func (c *Client) Categories(ctx context.Context, layer domain.Layer) ([]string, error) {
	var path string
	switch layer {
	case domain.LayerBuildings:
		path = "/buildings/categories"
	case domain.LayerRoads:
		path = "/roads/categories"
	default:
		return nil, domain.ErrUnknownLayer
	}

	body, err := c.get(ctx, path, path, nil)
	if err != nil {
		return nil, err
	}
	var resp categoriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstream, path, err)
	}
	return resp.Data, nil
}

// Features fetches one page of a layer, optionally filtered by category.
func (c *Client) Features(ctx context.Context, q domain.LayerQuery) (*geospatial.Envelope, error) {
	var path string
	params := url.Values{}
	switch {
	case q.Layer == domain.LayerBuildings && q.Category == "":
		path = "/buildings"
	case q.Layer == domain.LayerBuildings:
		path = "/category/buildings"
		params.Set("building_category", q.Category)
	case q.Layer == domain.LayerRoads && q.Category == "":
		path = "/roads"
	case q.Layer == domain.LayerRoads:
		path = "/category/roads"
		params.Set("category", q.Category)
	case q.Layer == domain.LayerJunctions:
		return c.Junctions(ctx, domain.JunctionQuery{TypeCode: q.Category, Limit: q.Limit})
	default:
		return nil, domain.ErrUnknownLayer
	}
	if q.BBox != "" {
		params.Set("bbox", q.BBox)
	}
	setPositive(params, "limit", q.Limit)
	setPositive(params, "page", q.Page)

	return c.envelope(ctx, path, params)
}

// Junctions fetches road junctions of a type.
func (c *Client) Junctions(ctx context.Context, q domain.JunctionQuery) (*geospatial.Envelope, error) {
	params := url.Values{}
	if q.TypeCode != "" {
		params.Set("junction_type_code", q.TypeCode)
	}
	setPositive(params, "limit", q.Limit)
	return c.envelope(ctx, "/roads/junctions", params)
}

// WeatherByCoordinates fetches the weather document around a point.
func (c *Client) WeatherByCoordinates(ctx context.Context, q domain.WeatherQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Location.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Location.Lon, 'f', -1, 64))
	params.Set("buffer_radius", strconv.FormatFloat(q.BufferRadius, 'f', -1, 64))
	return c.rawJSON(ctx, "/weather", "/weather", params)
}

// WeatherByZone fetches the weather document of a zone.
func (c *Client) WeatherByZone(ctx context.Context, zoneID string) (json.RawMessage, error) {
	return c.rawJSON(ctx, "/weather/:zone_id", "/weather/"+url.PathEscape(zoneID), nil)
}

func (c *Client) envelope(ctx context.Context, path string, params url.Values) (*geospatial.Envelope, error) {
	body, err := c.get(ctx, path, path, params)
	if err != nil {
		return nil, err
	}
	env, err := geospatial.DecodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstream, path, err)
	}
	return env, nil
}

func (c *Client) rawJSON(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", domain.ErrUpstream, path)
	}
	return json.RawMessage(body), nil
}

// get performs a GET and returns a copy of the body. Non-2xx statuses map to
// ErrNotFound (404) or ErrUpstream. endpoint labels the metrics.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	uri := c.baseURL + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	start := time.Now()
	err := c.http.DoTimeout(req, resp, timeout)
	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrUpstream, path, err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	case status < 200 || status > 299:
		metrics.UpstreamErrors.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("%w: HTTP %d for %s", domain.ErrUpstream, status, path)
	}

	body := resp.Body()
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func setPositive(params url.Values, key string, v int) {
	if v > 0 {
		params.Set(key, strconv.Itoa(v))
	}
}
