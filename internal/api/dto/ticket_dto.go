package dto

import (
	"time"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
)

// ListTicketsRequest payload for POST /tickets/listarTicket.
type ListTicketsRequest struct {
	IDCliente string `json:"id_cliente"`
}

// CreateTicketRequest payload for POST /tickets/addTicket.
type CreateTicketRequest struct {
	IDCliente   string `json:"id_cliente"`
	Descripcion string `json:"descripcion"`
}

// GetTicketRequest payload for POST /tickets/getTicket. IDCliente is
// optional; when present it must own the ticket.
type GetTicketRequest struct {
	IDTicket  string `json:"id_ticket"`
	IDCliente string `json:"id_cliente"`
}

// UpdateTicketRequest payload for POST /tickets/updateTicket. ClienteID is
// accepted only so a body that tries to reassign ownership can be rejected.
type UpdateTicketRequest struct {
	IDTicket    string  `json:"id_ticket"`
	IDCliente   string  `json:"id_cliente"`
	ClienteID   *string `json:"clienteID"`
	Descripcion *string `json:"descripcion"`
	Estado      *string `json:"estado"`
	Solucion    *string `json:"solucion"`
}

// Patch extracts the mutable fields.
func (r UpdateTicketRequest) Patch() domain.TicketPatch {
	return domain.TicketPatch{
		Descripcion: r.Descripcion,
		Estado:      r.Estado,
		Solucion:    r.Solucion,
	}
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID             string    `json:"id"`
	ClienteID      string    `json:"clienteID"`
	Descripcion    string    `json:"descripcion"`
	Solucion       string    `json:"solucion"`
	Estado         string    `json:"estado"`
	FechaApertura  time.Time `json:"fecha_apertura"`
	UltimoContacto time.Time `json:"ultimo_contacto"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		ClienteID:      t.ClienteID,
		Descripcion:    t.Descripcion,
		Solucion:       t.Solucion,
		Estado:         t.Estado,
		FechaApertura:  t.FechaApertura,
		UltimoContacto: t.UltimoContacto,
	}
}

// NewTicketResponses maps a slice, never returning nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}
