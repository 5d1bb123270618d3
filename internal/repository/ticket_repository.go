package repository

import (
	"context"
	"sort"
	"time"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
)

// Ticket document attributes.
const (
	attrTicketID       = "id"
	attrClienteID      = "clienteID"
	attrDescripcion    = "descripcion"
	attrSolucion       = "solucion"
	attrEstado         = "estado"
	attrEstadoLegacy   = "estado_solucion"
	attrFechaApertura  = "fecha_apertura"
	attrUltimoContacto = "ultimo_contacto"
)

// TicketRepository encapsulates ticket persistence. Missing tickets return
// store.ErrNotFound; a taken id on Create returns store.ErrConditionFailed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByOwner(ctx context.Context, clienteID string) ([]domain.Ticket, error)
	Update(ctx context.Context, id string, patch domain.TicketPatch, touchedAt time.Time) (*domain.Ticket, error)
}

type ticketRepository struct {
	store store.DocumentStore
	table string
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(s store.DocumentStore, table string) TicketRepository {
	return &ticketRepository{store: s, table: table}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.store.PutIfAbsent(ctx, r.table, ticketToItem(ticket), "")
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	item, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return nil, err
	}
	return ticketFromItem(item), nil
}

// ListByOwner returns the owner's tickets, newest first. It never returns a
// nil slice.
func (r *ticketRepository) ListByOwner(ctx context.Context, clienteID string) ([]domain.Ticket, error) {
	items, err := r.store.Scan(ctx, r.table, store.Filter{attrClienteID: clienteID})
	if err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(items))
	for _, item := range items {
		tickets = append(tickets, *ticketFromItem(item))
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].FechaApertura.After(tickets[j].FechaApertura)
	})
	return tickets, nil
}

// Update writes only the patched fields plus ultimo_contacto.
func (r *ticketRepository) Update(ctx context.Context, id string, patch domain.TicketPatch, touchedAt time.Time) (*domain.Ticket, error) {
	fields := store.Item{attrUltimoContacto: formatTime(touchedAt)}
	if patch.Descripcion != nil {
		fields[attrDescripcion] = *patch.Descripcion
	}
	if patch.Estado != nil {
		fields[attrEstado] = *patch.Estado
	}
	if patch.Solucion != nil {
		fields[attrSolucion] = *patch.Solucion
	}

	item, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return nil, err
	}
	return ticketFromItem(item), nil
}

func ticketToItem(t *domain.Ticket) store.Item {
	return store.Item{
		attrTicketID:       t.ID,
		attrClienteID:      t.ClienteID,
		attrDescripcion:    t.Descripcion,
		attrSolucion:       t.Solucion,
		attrEstado:         t.Estado,
		attrFechaApertura:  formatTime(t.FechaApertura),
		attrUltimoContacto: formatTime(t.UltimoContacto),
	}
}

func ticketFromItem(item store.Item) *domain.Ticket {
	t := &domain.Ticket{
		ID:             item.String(attrTicketID),
		ClienteID:      item.String(attrClienteID),
		Descripcion:    item.String(attrDescripcion),
		Solucion:       item.String(attrSolucion),
		Estado:         item.String(attrEstado),
		FechaApertura:  parseTime(item, attrFechaApertura),
		UltimoContacto: parseTime(item, attrUltimoContacto),
	}
	if _, legacy := item[attrEstadoLegacy]; legacy && t.Estado == "" {
		t.Estado = legacyEstado(t.Solucion)
	}
	return t
}

// legacyEstado derives a status for tickets written with the numeric
// estado_solucion flag, which never tracked progress past creation.
func legacyEstado(solucion string) string {
	if solucion != "" {
		return domain.TicketStatusResolved
	}
	return domain.TicketStatusPending
}
