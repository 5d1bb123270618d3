package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mesa-ayuda/helpdesk-service/internal/api/dto"
	"github.com/mesa-ayuda/helpdesk-service/internal/service"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

// ClientsHandler exposes client auth endpoints.
type ClientsHandler struct {
	auth    *service.AuthService
	clients *service.ClientService
}

// NewClientsHandler constructs handler.
func NewClientsHandler(authService *service.AuthService, clientService *service.ClientService) *ClientsHandler {
	return &ClientsHandler{auth: authService, clients: clientService}
}

// Login handles POST /clientes/login.
func (h *ClientsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	client, err := h.auth.Login(c.UserContext(), req.Contacto, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		Response:           "OK",
		ID:                 client.ID,
		Contacto:           client.Contacto,
		Nombre:             client.DisplayName(),
		FechaUltimoIngreso: client.FechaUltimoIngreso,
	})
}

// Register handles POST /clientes/registro.
func (h *ClientsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	client, err := h.auth.RegisterClient(c.UserContext(), req.Nombre, req.Contacto, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"response": "OK",
		"cliente":  dto.NewClientResponse(client),
	})
}

// ResetPassword handles POST /clientes/resetPassword.
func (h *ClientsHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Contacto, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": "OK"})
}

// Update handles POST /clientes/update.
func (h *ClientsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password != nil {
		return apperrors.NewValidationError("password can only change through resetPassword",
			map[string]any{"field": "password"})
	}

	client, err := h.clients.UpdateProfile(c.UserContext(), req.ID, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"response": "OK",
		"cliente":  dto.NewClientResponse(client),
	})
}

// List handles GET /clientes/listar.
func (h *ClientsHandler) List(c *fiber.Ctx) error {
	clients, err := h.clients.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ClientResponse, 0, len(clients))
	for i := range clients {
		items = append(items, dto.NewClientResponse(&clients[i]))
	}
	return c.JSON(fiber.Map{"response": "OK", "data": items})
}
