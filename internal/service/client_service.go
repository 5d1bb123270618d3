package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
	"github.com/mesa-ayuda/helpdesk-service/internal/repository"
	"github.com/mesa-ayuda/helpdesk-service/internal/sanitize"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

// ClientService reads and writes client identity records. Mutations are
// keyed by id, lookups by contacto.
type ClientService struct {
	clients repository.ClientRepository
	cache   *expirable.LRU[string, domain.Client]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// ClientDependencies bundles collaborators for the client service.
type ClientDependencies struct {
	ClientRepo repository.ClientRepository
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// CacheSize 0 disables the by-id cache.
	CacheSize int
	CacheTTL  time.Duration
}

// NewClientService constructs the service.
func NewClientService(deps ClientDependencies) *ClientService {
	s := &ClientService{
		clients: deps.ClientRepo,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if deps.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, domain.Client](deps.CacheSize, nil, deps.CacheTTL)
	}
	return s
}

// FindByContact returns the client registered under contacto, or nil when
// there is none.
func (s *ClientService) FindByContact(ctx context.Context, contacto string) (*domain.Client, error) {
	client, err := s.clients.GetByContacto(ctx, contacto)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return client, nil
}

// FindByID returns the client with the given id, or nil when there is none.
func (s *ClientService) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(id); ok {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	s.remember(client)
	return client, nil
}

// RecordLastLogin stamps fecha_ultimo_ingreso and nothing else.
func (s *ClientService) RecordLastLogin(ctx context.Context, id string, at time.Time) (*domain.Client, error) {
	client, err := s.clients.UpdateLastLogin(ctx, id, at)
	if err != nil {
		s.forget(id)
		return nil, mapClientStoreError(err, id)
	}
	s.remember(client)
	return client, nil
}

// Create stores a new client. A taken contacto or id yields DuplicateClient.
func (s *ClientService) Create(ctx context.Context, client *domain.Client) error {
	if err := s.clients.Create(ctx, client); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return apperrors.NewDuplicateClient(client.Contacto)
		}
		return apperrors.NewStoreError(err)
	}
	s.remember(client)
	return nil
}

// UpdatePassword replaces the stored credential. hash must already be a
// bcrypt hash.
func (s *ClientService) UpdatePassword(ctx context.Context, id, hash string, at time.Time) (*domain.Client, error) {
	client, err := s.clients.UpdatePassword(ctx, id, hash, at)
	if err != nil {
		s.forget(id)
		return nil, mapClientStoreError(err, id)
	}
	s.remember(client)
	return client, nil
}

// UpdateProfile applies an administrative change to nombre, activo or
// registrado. The write is keyed by id; nombre is escaped and may not be
// blank.
func (s *ClientService) UpdateProfile(ctx context.Context, id string, patch domain.ClientProfilePatch) (*domain.Client, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("client id is required", nil)
	}
	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if patch.Nombre != nil {
		nombre := strings.TrimSpace(*patch.Nombre)
		if nombre == "" {
			return nil, apperrors.NewValidationError("nombre must not be blank", nil)
		}
		nombre = sanitize.Escape(nombre)
		patch.Nombre = &nombre
	}

	client, err := s.clients.UpdateProfile(ctx, id, patch)
	if err != nil {
		s.forget(id)
		return nil, mapClientStoreError(err, id)
	}
	s.remember(client)
	s.logger.Info("client profile updated",
		zap.String("client_id", id),
		zap.Bool("activo", client.Activo),
		zap.Bool("registrado", client.Registrado),
	)
	return client, nil
}

// List returns every client ordered by fecha_alta.
func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return clients, nil
}

func (s *ClientService) remember(client *domain.Client) {
	if s.cache == nil || client == nil {
		return
	}
	s.cache.Add(client.ID, *client)
}

func (s *ClientService) forget(id string) {
	if s.cache == nil {
		return
	}
	s.cache.Remove(id)
}

func mapClientStoreError(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound("client", map[string]any{"id": id})
	}
	return apperrors.NewStoreError(err)
}
