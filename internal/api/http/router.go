package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-tracker/internal/api/http/handlers"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", metricsHandler(cfg.Metrics))
	}

	api := app.Group("/api", cfg.AuthMiddleware, auth.RequireRole())
	api.Get("/profile", cfg.Users.Profile)
	api.Get("/users", cfg.Users.ListUsers)

	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", auth.RequireRole(domain.UserRoleManager), cfg.Tickets.CreateTicket)
	api.Put("/tickets/update", cfg.Tickets.UpdateTicket)
	api.Post("/tickets/save_update", cfg.Tickets.SaveUpdate)
	api.Get("/tickets/history", cfg.Tickets.History)
	api.Get("/tickets/history/export", auth.RequireRole(domain.UserRoleManager), cfg.Tickets.ExportHistory)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/photos/:ticketId", cfg.Tickets.ListPhotos)
}

func metricsHandler(metrics *observability.Metrics) fiber.Handler {
	return adaptor.HTTPHandler(metrics.Handler())
}
