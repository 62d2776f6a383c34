package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Alerts         *handlers.AlertsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleSupervisor, domain.RolePlatformAdmin), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/escalate", cfg.Tickets.EscalateTicket)
	tickets.Post("/:id/assign", auth.RequireStaff(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/satisfaction", cfg.Tickets.SubmitSatisfaction)

	alerts := app.Group("/alerts", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSupervisor, domain.RolePlatformAdmin))
	alerts.Get("/active", cfg.Alerts.ActiveAlerts)
	alerts.Get("/history", cfg.Alerts.AlertHistory)
	alerts.Get("/rules", cfg.Alerts.ListRules)
	alerts.Post("/rules", cfg.Alerts.CreateRule)
	alerts.Put("/rules/:id", cfg.Alerts.UpdateRule)
	alerts.Delete("/rules/:id", cfg.Alerts.DeleteRule)
	alerts.Post("/:id/resolve", cfg.Alerts.ResolveAlert)
}
