package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mesa-ayuda/helpdesk-service/internal/api/dto"
	"github.com/mesa-ayuda/helpdesk-service/internal/service"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

// TicketsHandler manages client ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets POST /tickets/listarTicket. An owner without tickets gets an
// empty data array.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var req dto.ListTicketsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IDCliente == "" {
		return apperrors.NewValidationError("id_cliente required", nil)
	}

	tickets, err := h.service.ListTicketsByOwner(c.UserContext(), req.IDCliente)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": "OK", "data": dto.NewTicketResponses(tickets)})
}

// CreateTicket POST /tickets/addTicket.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), req.IDCliente, req.Descripcion)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"response": "OK", "data": dto.NewTicketResponse(ticket)})
}

// GetTicket POST /tickets/getTicket.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	var req dto.GetTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IDTicket == "" {
		return apperrors.NewValidationError("id_ticket required", nil)
	}

	ticket, err := h.service.GetOwnedTicket(c.UserContext(), req.IDTicket, req.IDCliente)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": "OK", "data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket POST /tickets/updateTicket.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IDTicket == "" {
		return apperrors.NewValidationError("id_ticket required", nil)
	}
	if req.ClienteID != nil {
		return apperrors.NewValidationError("clienteID cannot be changed",
			map[string]any{"field": "clienteID"})
	}

	ticket, err := h.service.UpdateOwnedTicket(c.UserContext(), req.IDTicket, req.IDCliente, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": "OK", "data": dto.NewTicketResponse(ticket)})
}
