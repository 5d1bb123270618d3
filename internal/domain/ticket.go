package domain

import "time"

// Ticket estados. Every new ticket starts Pendiente; Resuelto is reported
// for legacy tickets that carry a solucion but no estado.
const (
	TicketStatusPending  = "Pendiente"
	TicketStatusResolved = "Resuelto"
)

// Ticket is one support request owned by exactly one client.
type Ticket struct {
	ID             string
	ClienteID      string
	Descripcion    string
	Solucion       string
	Estado         string
	FechaApertura  time.Time
	UltimoContacto time.Time
}

// TicketPatch lists the only fields an update may touch. Nil means unchanged.
type TicketPatch struct {
	Descripcion *string
	Estado      *string
	Solucion    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TicketPatch) IsEmpty() bool {
	return p.Descripcion == nil && p.Estado == nil && p.Solucion == nil
}
