package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	AuthHandler       *handler.AuthHandler
	DashboardHandler  *handler.DashboardHandler
	EventsHandler     *handler.EventsHandler
	Health            fiber.Handler
	JWTMiddleware     fiber.Handler
	SubmitLimiter     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	health := deps.Health
	if health == nil {
		health = handler.HealthCheck(cfg, nil, nil)
	}
	api.Get("/health", health)

	if deps.SubmissionHandler != nil {
		var limiters []fiber.Handler
		if deps.SubmitLimiter != nil {
			limiters = append(limiters, deps.SubmitLimiter)
		}
		deps.SubmissionHandler.Register(api.Group("/submissions"), limiters...)
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"))
	}

	// Without a JWT middleware the dashboard would be public, so it is not mounted.
	if deps.JWTMiddleware == nil {
		return
	}

	dashboard := api.Group("/dashboard", deps.JWTMiddleware, middleware.RequireRole(models.RoleProfessor, models.RoleAdmin))
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(dashboard)
	}
	if deps.EventsHandler != nil {
		deps.EventsHandler.Register(dashboard)
	}
}
