package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/events"
	"github.com/mesa-ayuda/helpdesk-service/internal/repository"
	"github.com/mesa-ayuda/helpdesk-service/internal/sanitize"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

const descripcionPreviewLen = 80

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	clients    *ClientService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	// Clients enables the owner existence check on create. Optional.
	Clients    *ClientService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		clients:    deps.Clients,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateTicket opens a Pendiente ticket owned by clienteID.
func (s *TicketService) CreateTicket(ctx context.Context, clienteID, descripcion string) (*domain.Ticket, error) {
	clienteID = strings.TrimSpace(clienteID)
	if clienteID == "" || strings.TrimSpace(descripcion) == "" {
		return nil, apperrors.NewValidationError("clienteId and descripcion are required", nil)
	}

	if s.clients != nil {
		owner, err := s.clients.FindByID(ctx, clienteID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, apperrors.NewNotFound("client", map[string]any{"id": clienteID})
		}
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		ClienteID:      clienteID,
		Descripcion:    sanitize.Escape(descripcion),
		Solucion:       "",
		Estado:         domain.TicketStatusPending,
		FechaApertura:  now,
		UltimoContacto: now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return nil, apperrors.NewDuplicateTicket(ticket.ID)
		}
		return nil, apperrors.NewStoreError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		ClientID: clienteID,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Estado:             ticket.Estado,
			DescripcionPreview: stringPreview(ticket.Descripcion, descripcionPreviewLen),
		},
	})
	return ticket, nil
}

// ListTicketsByOwner returns the owner's tickets, newest first. Zero matches
// is an empty slice, never an error.
func (s *TicketService) ListTicketsByOwner(ctx context.Context, clienteID string) ([]domain.Ticket, error) {
	if strings.TrimSpace(clienteID) == "" {
		return []domain.Ticket{}, nil
	}
	tickets, err := s.tickets.ListByOwner(ctx, clienteID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return tickets, nil
}

// GetTicketByID returns the ticket or nil when it does not exist.
func (s *TicketService) GetTicketByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

// GetOwnedTicket is GetTicketByID with an owner check: a ticket that exists
// but belongs to someone else yields Forbidden, a missing one NotFound.
func (s *TicketService) GetOwnedTicket(ctx context.Context, id, clienteID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicketByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if clienteID != "" && ticket.ClienteID != clienteID {
		return nil, apperrors.NewForbidden("ticket belongs to another client")
	}
	return ticket, nil
}

// UpdateTicket applies patch to descripcion, estado and solucion only and
// returns the full updated record. clienteID and id are never written.
func (s *TicketService) UpdateTicket(ctx context.Context, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if blank(patch.Descripcion) || blank(patch.Estado) {
		return nil, apperrors.NewValidationError("descripcion and estado must not be blank", nil)
	}

	clean := domain.TicketPatch{
		Descripcion: sanitize.EscapePtr(patch.Descripcion),
		Estado:      sanitize.EscapePtr(patch.Estado),
		Solucion:    sanitize.EscapePtr(patch.Solucion),
	}
	ticket, err := s.tickets.Update(ctx, id, clean, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketUpdated,
		ClientID: ticket.ClienteID,
		TicketID: ticket.ID,
		Payload:  events.TicketUpdatedPayload{Fields: patchedFields(clean), Estado: ticket.Estado},
	})
	return ticket, nil
}

// UpdateOwnedTicket runs UpdateTicket after checking that clienteID, when
// given, owns the ticket.
func (s *TicketService) UpdateOwnedTicket(ctx context.Context, id, clienteID string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if clienteID != "" {
		if _, err := s.GetOwnedTicket(ctx, id, clienteID); err != nil {
			return nil, err
		}
	}
	return s.UpdateTicket(ctx, id, patch)
}

func blank(v *string) bool {
	return v != nil && strings.TrimSpace(*v) == ""
}

func patchedFields(p domain.TicketPatch) []string {
	fields := make([]string, 0, 3)
	if p.Descripcion != nil {
		fields = append(fields, "descripcion")
	}
	if p.Estado != nil {
		fields = append(fields, "estado")
	}
	if p.Solucion != nil {
		fields = append(fields, "solucion")
	}
	return fields
}
