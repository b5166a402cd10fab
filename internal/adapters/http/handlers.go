package http

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
)

// layerParam parses the :layer route parameter.
func layerParam(c *fiber.Ctx) (domain.Layer, error) {
	return domain.ParseLayer(c.Params("layer"))
}

// splitList splits a comma separated query value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LayerCategoriesHandler lists the categories of a layer.
func LayerCategoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer, err := layerParam(c)
		if err != nil {
			return errFromService(c, err)
		}
		cats, err := deps.Layers.Categories(c.UserContext(), layer)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{"layer": layer, "data": cats})
	}
}

// LayerFeaturesHandler returns a page of layer features in longitude/latitude.
func LayerFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer, err := layerParam(c)
		if err != nil {
			return errFromService(c, err)
		}
		q := domain.LayerQuery{
			Layer:    layer,
			Category: c.Query("category"),
			BBox:     c.Query("bbox"),
			Limit:    c.QueryInt("limit", 0),
			Page:     c.QueryInt("page", 0),
		}
		// links must reflect the clamped paging actually sent upstream
		q, err = deps.Layers.NormalizeQuery(q)
		if err != nil {
			return errFromService(c, err)
		}
		fc, err := deps.Layers.Features(c.UserContext(), q)
		if err != nil {
			return errFromService(c, err)
		}
		SetPageLinks(c, PageInfo{Page: q.Page, Limit: q.Limit, Returned: len(fc.Features)})
		return c.JSON(fc)
	}
}

// LayerDensestHandler returns the densest grid cell of a layer category.
func LayerDensestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer, err := layerParam(c)
		if err != nil {
			return errFromService(c, err)
		}
		rec, err := deps.Zones.Recommend(c.UserContext(), domain.LayerQuery{
			Layer:    layer,
			Category: c.Query("category"),
			BBox:     c.Query("bbox"),
		}, c.QueryInt("grid_size", 0))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(rec)
	}
}

// LayerRecommendationsHandler returns one densest cell per category.
func LayerRecommendationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer, err := layerParam(c)
		if err != nil {
			return errFromService(c, err)
		}
		recs, err := deps.Zones.RecommendAll(c.UserContext(), layer,
			splitList(c.Query("categories")), c.Query("bbox"), c.QueryInt("grid_size", 0))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{"layer": layer, "data": recs})
	}
}

// LatestZoneHandler returns the last published recommendation for a category.
func LatestZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer, err := layerParam(c)
		if err != nil {
			return errFromService(c, err)
		}
		rec, err := deps.Zones.Latest(c.UserContext(), layer, c.Query("category"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(rec)
	}
}

// JunctionsHandler returns road junctions of a type code.
func JunctionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := deps.Layers.Junctions(c.UserContext(), domain.JunctionQuery{
			TypeCode: c.Query("junction_type_code"),
			Limit:    c.QueryInt("limit", 0),
		})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fc)
	}
}

// WeatherHandler returns the upstream weather document around a point.
func WeatherHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		doc, err := deps.Weather.ByCoordinates(c.UserContext(),
			c.QueryFloat("lat"), c.QueryFloat("lon"), c.QueryFloat("buffer_radius", 0))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(doc)
	}
}

// WeatherZoneHandler returns the upstream weather document of a zone.
func WeatherZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := deps.Weather.ByZone(c.UserContext(), c.Params("zone_id"))
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(doc)
	}
}

// ConvertHandler converts a posted upstream envelope to longitude/latitude.
func ConvertHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		env, err := geospatial.DecodeEnvelope(c.Body())
		if err != nil {
			return errBadRequest(c, "invalid envelope: "+err.Error())
		}
		if env.Skipped > 0 {
			c.Set("X-Skipped-Features", strconv.Itoa(env.Skipped))
		}
		return c.JSON(deps.Layers.Convert(env))
	}
}

type densestRequest struct {
	Features []*geojson.Feature `json:"features"`
	BBox     string             `json:"bbox"`
	GridSize int                `json:"grid_size"`
}

// DensestHandler bins posted geographic features and returns the densest cell.
func DensestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req densestRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		res, err := deps.Zones.Densest(c.UserContext(), req.Features, req.BBox, req.GridSize)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(res)
	}
}
