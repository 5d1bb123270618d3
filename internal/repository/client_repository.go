package repository

import (
	"context"
	"sort"
	"time"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
)

// Client document attributes.
const (
	attrClientID           = "id"
	attrContacto           = "contacto"
	attrNombre             = "nombre"
	attrPassword           = "password"
	attrActivo             = "activo"
	attrRegistrado         = "registrado"
	attrFechaAlta          = "fecha_alta"
	attrFechaUltimoIngreso = "fecha_ultimo_ingreso"
	attrFechaCambioPwd     = "fecha_cambio_password"
)

// ClientRepository defines persistence access for clients. Lookups that
// match nothing return store.ErrNotFound; a taken id or contacto on Create
// returns store.ErrConditionFailed.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	GetByContacto(ctx context.Context, contacto string) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) (*domain.Client, error)
	UpdatePassword(ctx context.Context, id, password string, at time.Time) (*domain.Client, error)
	UpdateProfile(ctx context.Context, id string, patch domain.ClientProfilePatch) (*domain.Client, error)
}

type clientRepository struct {
	store store.DocumentStore
	table string
}

// NewClientRepository returns a document-store backed implementation.
func NewClientRepository(s store.DocumentStore, table string) ClientRepository {
	return &clientRepository{store: s, table: table}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.store.PutIfAbsent(ctx, r.table, clientToItem(client), attrContacto)
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	item, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return nil, err
	}
	return clientFromItem(item), nil
}

// GetByContacto returns the first client whose contacto matches exactly.
func (r *clientRepository) GetByContacto(ctx context.Context, contacto string) (*domain.Client, error) {
	items, err := r.store.Scan(ctx, r.table, store.Filter{attrContacto: contacto})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return clientFromItem(items[0]), nil
}

func (r *clientRepository) List(ctx context.Context) ([]domain.Client, error) {
	items, err := r.store.Scan(ctx, r.table, nil)
	if err != nil {
		return nil, err
	}
	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		clients = append(clients, *clientFromItem(item))
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].FechaAlta.Before(clients[j].FechaAlta)
	})
	return clients, nil
}

func (r *clientRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) (*domain.Client, error) {
	item, err := r.store.Update(ctx, r.table, id, store.Item{
		attrFechaUltimoIngreso: formatTime(at),
	})
	if err != nil {
		return nil, err
	}
	return clientFromItem(item), nil
}

func (r *clientRepository) UpdatePassword(ctx context.Context, id, password string, at time.Time) (*domain.Client, error) {
	item, err := r.store.Update(ctx, r.table, id, store.Item{
		attrPassword:       password,
		attrFechaCambioPwd: formatTime(at),
	})
	if err != nil {
		return nil, err
	}
	return clientFromItem(item), nil
}

// UpdateProfile writes only the patched fields.
func (r *clientRepository) UpdateProfile(ctx context.Context, id string, patch domain.ClientProfilePatch) (*domain.Client, error) {
	fields := store.Item{}
	if patch.Nombre != nil {
		fields[attrNombre] = *patch.Nombre
	}
	if patch.Activo != nil {
		fields[attrActivo] = *patch.Activo
	}
	if patch.Registrado != nil {
		fields[attrRegistrado] = *patch.Registrado
	}

	item, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return nil, err
	}
	return clientFromItem(item), nil
}

func clientToItem(c *domain.Client) store.Item {
	return store.Item{
		attrClientID:           c.ID,
		attrContacto:           c.Contacto,
		attrNombre:             c.Nombre,
		attrPassword:           c.Password,
		attrActivo:             c.Activo,
		attrRegistrado:         c.Registrado,
		attrFechaAlta:          formatTime(c.FechaAlta),
		attrFechaUltimoIngreso: formatTimePtr(c.FechaUltimoIngreso),
		attrFechaCambioPwd:     formatTime(c.FechaCambioPassword),
	}
}

// clientFromItem maps a stored document. Records written before the activo
// flag existed are treated as active.
func clientFromItem(item store.Item) *domain.Client {
	return &domain.Client{
		ID:                  item.String(attrClientID),
		Contacto:            item.String(attrContacto),
		Nombre:              item.String(attrNombre),
		Password:            item.String(attrPassword),
		Activo:              boolAttr(item, attrActivo, true),
		Registrado:          boolAttr(item, attrRegistrado, false),
		FechaAlta:           parseTime(item, attrFechaAlta),
		FechaUltimoIngreso:  parseTimePtr(item, attrFechaUltimoIngreso),
		FechaCambioPassword: parseTime(item, attrFechaCambioPwd),
	}
}
