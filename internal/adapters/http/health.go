package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": Version,
		})
	}
}

// readinessCheck pings one optional backing service. A nil ping means the
// service is not configured.
type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

func readinessChecks(deps *Dependencies) []readinessCheck {
	checks := []readinessCheck{{name: "database"}, {name: "nats"}, {name: "cache"}}
	if deps.DB != nil {
		checks[0].ping = deps.DB.Ping
	}
	if deps.NATS != nil {
		checks[1].ping = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].ping = deps.Cache.Ping
	}
	return checks
}

// ReadyHandler pings the configured backing services concurrently. Only a
// configured service that fails makes the instance not ready.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make([]string, len(checks))
		var wg sync.WaitGroup
		for i, chk := range checks {
			if chk.ping == nil {
				results[i] = "not configured"
				continue
			}
			wg.Add(1)
			go func(i int, ping func(context.Context) error) {
				defer wg.Done()
				if err := ping(ctx); err != nil {
					results[i] = "error: " + err.Error()
					return
				}
				results[i] = "ok"
			}(i, chk.ping)
		}
		wg.Wait()

		status, code := "ready", fiber.StatusOK
		out := make(map[string]string, len(checks))
		for i, chk := range checks {
			out[chk.name] = results[i]
			if results[i] != "ok" && results[i] != "not configured" {
				status, code = "not ready", fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": out,
		})
	}
}
