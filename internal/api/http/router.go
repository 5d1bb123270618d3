package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/mesa-ayuda/helpdesk-service/internal/api/http/handlers"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health             *handlers.HealthHandler
	Clients            *handlers.ClientsHandler
	Tickets            *handlers.TicketsHandler
	Metrics            *observability.Metrics
	LoginRatePerMinute int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}
	app.Get("/api/cliente", cfg.Health.Ping)

	limited := authRateLimiter(cfg.LoginRatePerMinute)
	clientes := app.Group("/clientes")
	clientes.Post("/login", limited, cfg.Clients.Login)
	clientes.Post("/registro", cfg.Clients.Register)
	clientes.Post("/resetPassword", limited, cfg.Clients.ResetPassword)
	clientes.Post("/update", cfg.Clients.Update)
	clientes.Get("/listar", cfg.Clients.List)

	tickets := app.Group("/tickets")
	tickets.Post("/listarTicket", cfg.Tickets.ListTickets)
	tickets.Post("/addTicket", cfg.Tickets.CreateTicket)
	tickets.Post("/getTicket", cfg.Tickets.GetTicket)
	tickets.Post("/updateTicket", cfg.Tickets.UpdateTicket)
}
