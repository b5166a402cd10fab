package http

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultSpecPath is where the OpenAPI document lives relative to the working directory.
const DefaultSpecPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Geolayers API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// loadSpec parses the OpenAPI document and renders it as JSON for Swagger UI.
func loadSpec(path string) (yamlDoc, jsonDoc []byte, err error) {
	yamlDoc, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	spec, err := openapi3.NewLoader().LoadFromData(yamlDoc)
	if err != nil {
		return nil, nil, err
	}
	jsonDoc, err = json.Marshal(spec)
	if err != nil {
		return nil, nil, err
	}
	return yamlDoc, jsonDoc, nil
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. The document is read once.
func SetupDocs(app *fiber.App) {
	yamlDoc, jsonDoc, err := loadSpec(DefaultSpecPath)
	if err != nil {
		slog.Warn("openapi spec unavailable", "path", DefaultSpecPath, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if yamlDoc == nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set("Content-Type", "application/yaml")
		return c.Send(yamlDoc)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if jsonDoc == nil {
			return errNotFound(c, "openapi.json not found")
		}
		c.Set("Content-Type", fiber.MIMEApplicationJSON)
		return c.Send(jsonDoc)
	})
}
