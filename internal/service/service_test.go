package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/events"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
	"github.com/mesa-ayuda/helpdesk-service/internal/repository"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

type fixture struct {
	store   *store.MemoryStore
	clients *ClientService
	auth    *AuthService
	tickets *TicketService
	events  *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		BcryptCost:            bcrypt.MinCost,
		MinPasswordLength:     8,
		UpgradeLegacyPassword: true,
	}}

	mem := store.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, typ := range []events.EventType{
		events.EventClientRegistered, events.EventClientLoggedIn, events.EventClientPasswordReset,
		events.EventLegacyCredentialUsed, events.EventTicketCreated, events.EventTicketUpdated,
	} {
		dispatcher.Subscribe(typ, rec.handle)
	}

	clients := NewClientService(ClientDependencies{
		ClientRepo: repository.NewClientRepository(mem, "cliente"),
		Metrics:    observability.NewMetrics(),
		CacheSize:  16,
		CacheTTL:   time.Minute,
	})
	return &fixture{
		store:   mem,
		clients: clients,
		auth: NewAuthService(cfg, AuthDependencies{
			Clients:    clients,
			Dispatcher: dispatcher,
			Metrics:    observability.NewMetrics(),
		}),
		tickets: NewTicketService(TicketDependencies{
			TicketRepo: repository.NewTicketRepository(mem, "ticket"),
			Clients:    clients,
			Dispatcher: dispatcher,
		}),
		events: rec,
	}
}

func (f *fixture) seedLegacy(t *testing.T, id, contacto, password string, activo bool) {
	t.Helper()
	item := store.Item{"id": id, "contacto": contacto, "password": password, "activo": activo}
	if err := f.store.PutIfAbsent(context.Background(), "cliente", item, "contacto"); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRegisterClientHashesPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.auth.RegisterClient(ctx, "Ana <b>", "ana@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if client.ID == "" || !client.Activo || !client.Registrado || client.FechaUltimoIngreso != nil {
		t.Errorf("client = %+v", client)
	}
	if client.Nombre != "Ana &lt;b&gt;" {
		t.Errorf("nombre not sanitized: %q", client.Nombre)
	}

	stored, err := f.clients.FindByContact(ctx, "ana@example.com")
	if err != nil || stored == nil {
		t.Fatalf("FindByContact = %v, %v", stored, err)
	}
	if stored.Password == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("s3cret-pass")) != nil {
		t.Error("stored hash does not verify")
	}
}

func TestRegisterClientValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name, nombre, contacto, password string
	}{
		{"missing nombre", "", "a@example.com", "long-enough"},
		{"missing contacto", "Ana", "", "long-enough"},
		{"missing password", "Ana", "a@example.com", ""},
		{"not an email", "Ana", "not-an-email", "long-enough"},
		{"display name form", "Ana", "Ana <a@example.com>", "long-enough"},
		{"short password", "Ana", "a@example.com", "short"},
		{"password over bcrypt limit", "Ana", "a@example.com", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.RegisterClient(ctx, tt.nombre, tt.contacto, tt.password)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestRegisterClientDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "first-password"); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := f.auth.RegisterClient(ctx, "Otra", "ana@example.com", "other-password")
	if !errors.Is(err, apperrors.ErrDuplicateClient) {
		t.Fatalf("err = %v, want DuplicateClient", err)
	}
}

func TestRegisterClientConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.auth.RegisterClient(ctx, fmt.Sprintf("Caller %d", i), "race@example.com", "race-password")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperrors.ErrDuplicateClient):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || dupes != callers-1 || len(unexpected) > 0 {
		t.Fatalf("ok=%d dupes=%d unexpected=%v", ok, dupes, unexpected)
	}
}

func TestValidateCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}

	got, err := f.auth.ValidateCredentials(ctx, "ana@example.com", "correct-horse")
	if err != nil || got.ID != registered.ID {
		t.Fatalf("ValidateCredentials = %v, %v", got, err)
	}

	for _, wrong := range []string{"correct-hors", "correct-horsE", "Correct-horse", registered.Password} {
		if _, err := f.auth.ValidateCredentials(ctx, "ana@example.com", wrong); !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Errorf("password %q: err = %v, want InvalidCredentials", wrong, err)
		}
	}

	if _, err := f.auth.ValidateCredentials(ctx, "nobody@example.com", "correct-horse"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown contacto err = %v, want NotFound", err)
	}
	if _, err := f.auth.ValidateCredentials(ctx, "ANA@example.com", "correct-horse"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("contacto match should be case-sensitive, err = %v", err)
	}
}

func TestValidateCredentialsNoStoredPassword(t *testing.T) {
	f := newFixture(t)
	f.seedLegacy(t, "L0", "empty@example.com", "", true)

	_, err := f.auth.ValidateCredentials(context.Background(), "empty@example.com", "anything")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestValidateCredentialsInactiveOnlyAfterVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLegacy(t, "L1", "off@example.com", "legacy-pass", false)

	if _, err := f.auth.ValidateCredentials(ctx, "off@example.com", "wrong-pass"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("wrong password on inactive account: err = %v, want InvalidCredentials", err)
	}
	if _, err := f.auth.ValidateCredentials(ctx, "off@example.com", "legacy-pass"); !errors.Is(err, apperrors.ErrInactiveAccount) {
		t.Errorf("right password on inactive account: err = %v, want InactiveAccount", err)
	}
}

func TestLoginUpgradesLegacyCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLegacy(t, "L2", "old@example.com", "plain-pass", true)

	client, err := f.auth.Login(ctx, "old@example.com", "plain-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if client.FechaUltimoIngreso == nil {
		t.Error("fecha_ultimo_ingreso not recorded")
	}
	if client.DisplayName() != domain.DefaultDisplayName {
		t.Errorf("DisplayName = %q", client.DisplayName())
	}

	stored, _ := f.clients.FindByContact(ctx, "old@example.com")
	if stored.Password == "plain-pass" {
		t.Fatal("legacy credential not upgraded")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("plain-pass")) != nil {
		t.Fatal("upgraded hash does not verify")
	}

	// second login goes through the hashed path
	if _, err := f.auth.Login(ctx, "old@example.com", "plain-pass"); err != nil {
		t.Fatalf("second Login: %v", err)
	}

	types := f.events.types()
	if len(types) < 3 || types[0] != events.EventLegacyCredentialUsed || types[1] != events.EventClientLoggedIn {
		t.Errorf("events = %v", types)
	}
}

func TestLoginWithoutUpgrade(t *testing.T) {
	f := newFixture(t)
	f.auth.upgradeLegacy = false
	ctx := context.Background()
	f.seedLegacy(t, "L3", "keep@example.com", "plain-pass", true)

	if _, err := f.auth.Login(ctx, "keep@example.com", "plain-pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	stored, _ := f.clients.FindByContact(ctx, "keep@example.com")
	if stored.Password != "plain-pass" {
		t.Error("credential rewritten with upgrade disabled")
	}
}

func TestRecordLastLoginTouchesOnlyTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered, err := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		got, err := f.clients.RecordLastLogin(ctx, registered.ID, at)
		if err != nil {
			t.Fatalf("RecordLastLogin: %v", err)
		}
		if !got.FechaUltimoIngreso.Equal(at) || got.Password != registered.Password || got.Nombre != "Ana" {
			t.Errorf("after RecordLastLogin = %+v", got)
		}
	}

	if _, err := f.clients.RecordLastLogin(ctx, "missing", at); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing client err = %v", err)
	}
}

func TestFindByIDCacheInvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered, _ := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "correct-horse")

	first, err := f.clients.FindByID(ctx, registered.ID)
	if err != nil || first == nil {
		t.Fatalf("FindByID = %v, %v", first, err)
	}
	if err := f.auth.ResetPassword(ctx, "ana@example.com", "brand-new-pass"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	after, _ := f.clients.FindByID(ctx, registered.ID)
	if after.Password == first.Password {
		t.Error("cached client served after password update")
	}

	missing, err := f.clients.FindByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("FindByID(nope) = %v, %v", missing, err)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "correct-horse"); err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}

	if err := f.auth.ResetPassword(ctx, "ana@example.com", "battery-staple"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := f.auth.ValidateCredentials(ctx, "ana@example.com", "battery-staple"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := f.auth.ValidateCredentials(ctx, "ana@example.com", "correct-horse"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("old password err = %v", err)
	}

	if err := f.auth.ResetPassword(ctx, "nobody@example.com", "battery-staple"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown contacto err = %v", err)
	}
	if err := f.auth.ResetPassword(ctx, "ana@example.com", "short"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("short password err = %v", err)
	}
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLegacy(t, "C1", "c1@example.com", "x", true)

	ticket, err := f.tickets.CreateTicket(ctx, "C1", "Broken printer")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.ID == "" || ticket.ClienteID != "C1" || ticket.Estado != "Pendiente" || ticket.Solucion != "" {
		t.Errorf("ticket = %+v", ticket)
	}
	if ticket.FechaApertura.IsZero() {
		t.Error("fecha_apertura not set")
	}

	escaped, err := f.tickets.CreateTicket(ctx, "C1", `<script>alert("x")</script>`)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if strings.ContainsAny(escaped.Descripcion, "<>") {
		t.Errorf("descripcion not escaped: %q", escaped.Descripcion)
	}

	if _, err := f.tickets.CreateTicket(ctx, "", "x"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("missing clienteId err = %v", err)
	}
	if _, err := f.tickets.CreateTicket(ctx, "C1", "   "); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("blank descripcion err = %v", err)
	}
	if _, err := f.tickets.CreateTicket(ctx, "ghost", "x"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown owner err = %v", err)
	}
}

type collidingTickets struct {
	repository.TicketRepository
}

func (collidingTickets) Create(context.Context, *domain.Ticket) error {
	return store.ErrConditionFailed
}

func TestCreateTicketIDCollision(t *testing.T) {
	svc := NewTicketService(TicketDependencies{TicketRepo: collidingTickets{}})
	_, err := svc.CreateTicket(context.Background(), "C1", "desc")
	if !errors.Is(err, apperrors.ErrDuplicateTicket) {
		t.Fatalf("err = %v, want DuplicateTicket", err)
	}
}

func TestListTicketsByOwnerEmpty(t *testing.T) {
	f := newFixture(t)
	tickets, err := f.tickets.ListTicketsByOwner(context.Background(), "C-none")
	if err != nil {
		t.Fatalf("ListTicketsByOwner: %v", err)
	}
	if tickets == nil || len(tickets) != 0 {
		t.Errorf("tickets = %#v, want empty slice", tickets)
	}
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLegacy(t, "C1", "c1@example.com", "x", true)
	created, _ := f.tickets.CreateTicket(ctx, "C1", "old text")

	descripcion := "new <text>"
	updated, err := f.tickets.UpdateTicket(ctx, created.ID, domain.TicketPatch{Descripcion: &descripcion})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if updated.Descripcion != "new &lt;text&gt;" {
		t.Errorf("descripcion = %q", updated.Descripcion)
	}
	if updated.ID != created.ID || updated.ClienteID != "C1" || updated.Estado != created.Estado {
		t.Errorf("unpatched fields changed: %+v", updated)
	}

	if _, err := f.tickets.UpdateTicket(ctx, "missing", domain.TicketPatch{Descripcion: &descripcion}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing ticket err = %v", err)
	}
	if _, err := f.tickets.UpdateTicket(ctx, created.ID, domain.TicketPatch{}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("empty patch err = %v", err)
	}
	blank := " "
	if _, err := f.tickets.UpdateTicket(ctx, created.ID, domain.TicketPatch{Estado: &blank}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("blank estado err = %v", err)
	}
}

func TestOwnedTicketAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedLegacy(t, "C1", "c1@example.com", "x", true)
	created, _ := f.tickets.CreateTicket(ctx, "C1", "desc")

	if _, err := f.tickets.GetOwnedTicket(ctx, created.ID, "C2"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("foreign owner err = %v", err)
	}
	if got, err := f.tickets.GetOwnedTicket(ctx, created.ID, "C1"); err != nil || got.ID != created.ID {
		t.Errorf("owner GetOwnedTicket = %v, %v", got, err)
	}
	estado := "Cerrado"
	if _, err := f.tickets.UpdateOwnedTicket(ctx, created.ID, "C2", domain.TicketPatch{Estado: &estado}); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("foreign update err = %v", err)
	}
	if got, _ := f.tickets.GetTicketByID(ctx, created.ID); got.Estado != domain.TicketStatusPending {
		t.Error("forbidden update was applied")
	}
	if got, err := f.tickets.GetTicketByID(ctx, "missing"); got != nil || err != nil {
		t.Errorf("GetTicketByID(missing) = %v, %v", got, err)
	}
}

type failingStore struct {
	store.DocumentStore
	err error
}

func (s failingStore) Scan(context.Context, string, store.Filter) ([]store.Item, error) {
	return nil, s.err
}

func TestUpdateProfileDeactivatesLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered, err := f.auth.RegisterClient(ctx, "Ana", "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if _, err := f.clients.FindByID(ctx, registered.ID); err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	inactive := false
	nombre := " Ana <María> "
	updated, err := f.clients.UpdateProfile(ctx, registered.ID, domain.ClientProfilePatch{Nombre: &nombre, Activo: &inactive})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Activo || updated.Nombre != "Ana &lt;María&gt;" || !updated.Registrado {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Password != registered.Password || updated.Contacto != registered.Contacto {
		t.Error("UpdateProfile touched credential or contacto")
	}

	cached, _ := f.clients.FindByID(ctx, registered.ID)
	if cached.Activo {
		t.Error("cached client served after profile update")
	}
	if _, err := f.auth.Login(ctx, "ana@example.com", "correct-horse"); !errors.Is(err, apperrors.ErrInactiveAccount) {
		t.Errorf("login after deactivation err = %v, want InactiveAccount", err)
	}

	active := true
	if _, err := f.clients.UpdateProfile(ctx, registered.ID, domain.ClientProfilePatch{Activo: &active}); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := f.auth.Login(ctx, "ana@example.com", "correct-horse"); err != nil {
		t.Errorf("login after reactivation: %v", err)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blank := "   "
	active := true

	tests := []struct {
		name  string
		id    string
		patch domain.ClientProfilePatch
		want  error
	}{
		{"missing id", "", domain.ClientProfilePatch{Activo: &active}, apperrors.ErrValidation},
		{"empty patch", "c1", domain.ClientProfilePatch{}, apperrors.ErrValidation},
		{"blank nombre", "c1", domain.ClientProfilePatch{Nombre: &blank}, apperrors.ErrValidation},
		{"unknown client", "nope", domain.ClientProfilePatch{Activo: &active}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.clients.UpdateProfile(ctx, tt.id, tt.patch); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	clients := NewClientService(ClientDependencies{
		ClientRepo: repository.NewClientRepository(failingStore{err: context.DeadlineExceeded}, "cliente"),
	})
	svc := NewAuthService(config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost, MinPasswordLength: 8}},
		AuthDependencies{Clients: clients})

	_, err := svc.ValidateCredentials(context.Background(), "a@example.com", "whatever")
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("timeout err = %v, want StoreUnavailable", err)
	}

	tickets := NewTicketService(TicketDependencies{
		TicketRepo: repository.NewTicketRepository(failingStore{err: errors.New("disk on fire")}, "ticket"),
	})
	if _, err := tickets.ListTicketsByOwner(context.Background(), "C1"); !errors.Is(err, apperrors.ErrStoreError) {
		t.Errorf("store failure err = %v, want StoreError", err)
	}
}

func TestStringPreview(t *testing.T) {
	if got := stringPreview("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := stringPreview("ñandú ñandú ñandú", 8); got != "ñandú..." {
		t.Errorf("got %q", got)
	}
}
