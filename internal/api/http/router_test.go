package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesa-ayuda/helpdesk-service/internal/api/http/handlers"
	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
	"github.com/mesa-ayuda/helpdesk-service/internal/repository"
	"github.com/mesa-ayuda/helpdesk-service/internal/service"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
)

type envelope struct {
	Response string          `json:"response"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Error    struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID                 string  `json:"id"`
	Nombre             string  `json:"nombre"`
	FechaUltimoIngreso *string `json:"fecha_ultimo_ingreso"`
}

func newTestApp(t *testing.T, loginRate int) (*fiber.App, store.DocumentStore) {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost, MinPasswordLength: 8}}
	mem := store.NewMemoryStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	clients := service.NewClientService(service.ClientDependencies{
		ClientRepo: repository.NewClientRepository(mem, "cliente"),
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg, service.AuthDependencies{Clients: clients, Metrics: metrics, Logger: logger})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(mem, "ticket"),
		Clients:    clients,
		Logger:     logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:             handlers.NewHealthHandler("helpdesk-service", "test", mem),
		Clients:            handlers.NewClientsHandler(authService, clients),
		Tickets:            handlers.NewTicketsHandler(ticketService),
		Metrics:            metrics,
		LoginRatePerMinute: loginRate,
	})
	return app, mem
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env, string(raw)
}

func TestClientFlow(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, env, _ := do(t, app, fiber.MethodPost, "/clientes/registro", map[string]string{
		"nombre": "Ana", "contacto": "ana@example.com", "password": "correct-horse",
	})
	if status != fiber.StatusCreated || env.Response != "OK" {
		t.Fatalf("registro = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/registro", map[string]string{
		"nombre": "Ana", "contacto": "ana@example.com", "password": "other-horse",
	})
	if status != fiber.StatusConflict || env.Error.Code != "DUPLICATE_CLIENT" || env.Response != "ERROR" {
		t.Errorf("duplicate registro = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{
		"contacto": "ana@example.com", "password": "correct-horse",
	})
	if status != fiber.StatusOK || env.ID == "" || env.Nombre != "Ana" || env.FechaUltimoIngreso == nil {
		t.Errorf("login = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{
		"contacto": "ana@example.com", "password": "wrong-horse",
	})
	if status != fiber.StatusUnauthorized || env.Error.Code != "INVALID_CREDENTIALS" {
		t.Errorf("bad login = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{"contacto": "ana@example.com"})
	if status != fiber.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("login without password = %d %+v", status, env)
	}

	status, _, raw := do(t, app, fiber.MethodGet, "/clientes/listar", nil)
	if status != fiber.StatusOK || strings.Contains(raw, "password") || strings.Contains(raw, "$2a$") {
		t.Errorf("listar = %d %s", status, raw)
	}

	status, _, _ = do(t, app, fiber.MethodPost, "/clientes/resetPassword", map[string]string{
		"contacto": "nobody@example.com", "password": "whatever-pass",
	})
	if status != fiber.StatusNotFound {
		t.Errorf("reset unknown = %d", status)
	}
}

func TestInactiveClientLogin(t *testing.T) {
	app, mem := newTestApp(t, 0)
	_ = mem.PutIfAbsent(context.Background(), "cliente", store.Item{
		"id": "L1", "contacto": "off@example.com", "password": "legacy-pass", "activo": false,
	}, "contacto")

	status, env, _ := do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{
		"contacto": "off@example.com", "password": "legacy-pass",
	})
	if status != fiber.StatusForbidden || env.Error.Code != "INACTIVE_ACCOUNT" {
		t.Errorf("inactive login = %d %+v", status, env)
	}
}

func TestTicketFlow(t *testing.T) {
	app, mem := newTestApp(t, 0)
	_ = mem.PutIfAbsent(context.Background(), "cliente", store.Item{"id": "C1", "contacto": "c1@example.com", "password": "x"}, "contacto")

	status, env, _ := do(t, app, fiber.MethodPost, "/tickets/listarTicket", map[string]string{"id_cliente": "C1"})
	if status != fiber.StatusOK || string(env.Data) != "[]" {
		t.Errorf("empty list = %d data=%s", status, env.Data)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/tickets/addTicket", map[string]string{
		"id_cliente": "C1", "descripcion": "Broken printer",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("addTicket = %d %+v", status, env)
	}
	var created struct {
		ID        string `json:"id"`
		ClienteID string `json:"clienteID"`
		Estado    string `json:"estado"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if created.ID == "" || created.ClienteID != "C1" || created.Estado != "Pendiente" {
		t.Errorf("created = %+v", created)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/tickets/addTicket", map[string]string{"id_cliente": "C1"})
	if status != fiber.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("addTicket without descripcion = %d %+v", status, env)
	}

	status, _, _ = do(t, app, fiber.MethodPost, "/tickets/getTicket", map[string]string{"id_ticket": created.ID, "id_cliente": "C2"})
	if status != fiber.StatusForbidden {
		t.Errorf("foreign getTicket = %d", status)
	}
	status, _, _ = do(t, app, fiber.MethodPost, "/tickets/getTicket", map[string]string{"id_ticket": "missing"})
	if status != fiber.StatusNotFound {
		t.Errorf("missing getTicket = %d", status)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/tickets/updateTicket", map[string]string{
		"id_ticket": created.ID, "clienteID": "C2",
	})
	if status != fiber.StatusBadRequest {
		t.Errorf("ownership change = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/tickets/updateTicket", map[string]string{
		"id_ticket": created.ID, "estado": "En curso",
	})
	if status != fiber.StatusOK {
		t.Fatalf("updateTicket = %d %+v", status, env)
	}
	var updated struct {
		ClienteID string `json:"clienteID"`
		Estado    string `json:"estado"`
	}
	_ = json.Unmarshal(env.Data, &updated)
	if updated.ClienteID != "C1" || updated.Estado != "En curso" {
		t.Errorf("updated = %+v", updated)
	}

	status, _, _ = do(t, app, fiber.MethodPost, "/tickets/updateTicket", map[string]string{
		"id_ticket": "missing", "estado": "x",
	})
	if status != fiber.StatusNotFound {
		t.Errorf("update missing = %d", status)
	}
}

func TestLoginRateLimited(t *testing.T) {
	app, _ := newTestApp(t, 2)
	body := map[string]string{"contacto": "x@example.com", "password": "whatever-pass"}

	for i := 0; i < 2; i++ {
		if status, _, _ := do(t, app, fiber.MethodPost, "/clientes/login", body); status == fiber.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	status, env, _ := do(t, app, fiber.MethodPost, "/clientes/login", body)
	if status != fiber.StatusTooManyRequests || env.Error.Code != "RATE_LIMITED" {
		t.Errorf("third login = %d %+v", status, env)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	app, _ := newTestApp(t, 0)

	if status, env, _ := do(t, app, fiber.MethodGet, "/api/cliente", nil); status != fiber.StatusOK || env.Response != "OK" {
		t.Errorf("ping = %d %+v", status, env)
	}
	if status, _, _ := do(t, app, fiber.MethodGet, "/health/ready", nil); status != fiber.StatusOK {
		t.Errorf("ready = %d", status)
	}
	if status, env, _ := do(t, app, fiber.MethodGet, "/nope", nil); status != fiber.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown route = %d %+v", status, env)
	}

	_, _, _ = do(t, app, fiber.MethodGet, "/health/live", nil)
	status, _, raw := do(t, app, fiber.MethodGet, "/metrics", nil)
	if status != fiber.StatusOK || !strings.Contains(raw, "helpdesk_http_requests_total") {
		t.Errorf("metrics = %d", status)
	}
}

func TestMetricsLabelsSurviveManyPaths(t *testing.T) {
	app, _ := newTestApp(t, 0)

	for i := 0; i < 5; i++ {
		_, _, _ = do(t, app, fiber.MethodGet, fmt.Sprintf("/scan-%d", i), nil)
	}
	_, _, _ = do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{
		"contacto": "nobody@example.com", "password": "whatever-pass",
	})
	_, _, _ = do(t, app, fiber.MethodPost, "/tickets/listarTicket", map[string]string{"id_cliente": "C1"})

	for round := 0; round < 2; round++ {
		status, _, raw := do(t, app, fiber.MethodGet, "/metrics", nil)
		if status != fiber.StatusOK {
			t.Fatalf("metrics round %d = %d\n%s", round, status, raw)
		}
		for _, want := range []string{
			`helpdesk_http_requests_total{method="GET",path="unmatched",status="404"} 5`,
			`helpdesk_http_errors_total{code="NOT_FOUND",method="GET",path="unmatched"} 5`,
			`helpdesk_http_errors_total{code="NOT_FOUND",method="POST",path="/clientes/login"} 1`,
			`helpdesk_http_requests_total{method="POST",path="/tickets/listarTicket",status="200"} 1`,
		} {
			if !strings.Contains(raw, want) {
				t.Errorf("metrics round %d missing %s", round, want)
			}
		}
		if strings.Contains(raw, "/scan-") {
			t.Errorf("raw request path leaked into labels")
		}
	}
}

func TestClientProfileUpdate(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, env, raw := do(t, app, fiber.MethodPost, "/clientes/registro", map[string]string{
		"nombre": "Ana", "contacto": "ana@example.com", "password": "correct-horse",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("registro = %d %s", status, raw)
	}
	var created struct {
		Cliente struct {
			ID string `json:"id"`
		} `json:"cliente"`
	}
	_ = json.Unmarshal([]byte(raw), &created)

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/update", map[string]any{
		"id": created.Cliente.ID, "password": "sneaky-change",
	})
	if status != fiber.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("update with password = %d %+v", status, env)
	}

	status, env, raw = do(t, app, fiber.MethodPost, "/clientes/update", map[string]any{
		"id": created.Cliente.ID, "activo": false,
	})
	if status != fiber.StatusOK || env.Response != "OK" || !strings.Contains(raw, `"activo":false`) {
		t.Fatalf("deactivate = %d %s", status, raw)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/login", map[string]string{
		"contacto": "ana@example.com", "password": "correct-horse",
	})
	if status != fiber.StatusForbidden || env.Error.Code != "INACTIVE_ACCOUNT" {
		t.Errorf("login after deactivation = %d %+v", status, env)
	}

	status, env, _ = do(t, app, fiber.MethodPost, "/clientes/update", map[string]any{"id": "missing", "activo": true})
	if status != fiber.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("update unknown = %d %+v", status, env)
	}
}
