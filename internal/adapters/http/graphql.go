package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

// geoJSONScalar passes GeoJSON values through untouched; they are encoded by
// their own MarshalJSON when the response is written.
var geoJSONScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "GeoJSON",
	Description: "A GeoJSON object in longitude/latitude.",
	Serialize:   func(v interface{}) interface{} { return v },
	ParseValue:  func(v interface{}) interface{} { return v },
	ParseLiteral: func(v ast.Value) interface{} {
		if s, ok := v.(*ast.StringValue); ok {
			return s.Value
		}
		return nil
	},
})

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	zoneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ZoneRecommendation",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"layer":       &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"bbox":        &graphql.Field{Type: graphql.String},
			"grid_size":   &graphql.Field{Type: graphql.Int},
			"count":       &graphql.Field{Type: graphql.Int},
			"features":    &graphql.Field{Type: graphql.Int},
			"width_m":     &graphql.Field{Type: graphql.Float},
			"height_m":    &graphql.Field{Type: graphql.Float},
			"polygon":     &graphql.Field{Type: geoJSONScalar},
			"computed_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	layerArgs := graphql.FieldConfigArgument{
		"layer":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
		"bbox":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"categories": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Args: graphql.FieldConfigArgument{
					"layer": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := domain.ParseLayer(p.Args["layer"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Layers.Categories(p.Context, layer)
				},
			},
			"features": &graphql.Field{
				Type: geoJSONScalar,
				Args: graphql.FieldConfigArgument{
					"layer":    layerArgs["layer"],
					"category": layerArgs["category"],
					"bbox":     layerArgs["bbox"],
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"page":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := domain.ParseLayer(p.Args["layer"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Layers.Features(p.Context, domain.LayerQuery{
						Layer:    layer,
						Category: p.Args["category"].(string),
						BBox:     p.Args["bbox"].(string),
						Limit:    p.Args["limit"].(int),
						Page:     p.Args["page"].(int),
					})
				},
			},
			"densest": &graphql.Field{
				Type: zoneType,
				Args: graphql.FieldConfigArgument{
					"layer":     layerArgs["layer"],
					"category":  layerArgs["category"],
					"bbox":      layerArgs["bbox"],
					"grid_size": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := domain.ParseLayer(p.Args["layer"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Zones.Recommend(p.Context, domain.LayerQuery{
						Layer:    layer,
						Category: p.Args["category"].(string),
						BBox:     p.Args["bbox"].(string),
					}, p.Args["grid_size"].(int))
				},
			},
			"recommendations": &graphql.Field{
				Type: graphql.NewList(zoneType),
				Args: graphql.FieldConfigArgument{
					"layer":      layerArgs["layer"],
					"categories": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"bbox":       layerArgs["bbox"],
					"grid_size":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := domain.ParseLayer(p.Args["layer"].(string))
					if err != nil {
						return nil, err
					}
					var cats []string
					if raw, ok := p.Args["categories"].([]interface{}); ok {
						for _, c := range raw {
							if s, ok := c.(string); ok && s != "" {
								cats = append(cats, s)
							}
						}
					}
					return deps.Zones.RecommendAll(p.Context, layer, cats, p.Args["bbox"].(string), p.Args["grid_size"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves POST /graphql.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
