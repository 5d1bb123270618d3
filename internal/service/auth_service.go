package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesa-ayuda/helpdesk-service/internal/auth"
	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
	"github.com/mesa-ayuda/helpdesk-service/internal/events"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
	"github.com/mesa-ayuda/helpdesk-service/internal/sanitize"
	"github.com/mesa-ayuda/helpdesk-service/internal/validation"
	apperrors "github.com/mesa-ayuda/helpdesk-service/pkg/util"
)

// AuthService coordinates registration, login and password reset.
type AuthService struct {
	clients       *ClientService
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	validator     *validation.Validator
	bcryptCost    int
	upgradeLegacy bool
	now           func() time.Time
}

type credentialsInput struct {
	Contacto string `json:"contacto" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registrationInput struct {
	Nombre   string `json:"nombre" validate:"required"`
	Contacto string `json:"contacto" validate:"required,email"`
	Password string `json:"password" validate:"required,password_min,password_max"`
}

type passwordResetInput struct {
	Contacto string `json:"contacto" validate:"required"`
	Password string `json:"password" validate:"required,password_min,password_max"`
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Clients    *ClientService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		clients:       deps.Clients,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        logger,
		validator:     validation.New(cfg.Auth.MinPasswordLength),
		bcryptCost:    cfg.Auth.BcryptCost,
		upgradeLegacy: cfg.Auth.UpgradeLegacyPassword,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ValidateCredentials authenticates contacto/password. Credentials are
// verified before the account's activo flag is disclosed.
func (s *AuthService) ValidateCredentials(ctx context.Context, contacto, password string) (*domain.Client, error) {
	client, _, err := s.verify(ctx, contacto, password)
	return client, err
}

// Login validates credentials, stamps fecha_ultimo_ingreso and upgrades a
// legacy plaintext credential to a hash when enabled.
func (s *AuthService) Login(ctx context.Context, contacto, password string) (*domain.Client, error) {
	client, kind, err := s.verify(ctx, contacto, password)
	if err != nil {
		s.metrics.RecordLogin(loginOutcome(err))
		return nil, err
	}

	loggedIn, err := s.clients.RecordLastLogin(ctx, client.ID, s.now())
	if err != nil {
		s.metrics.RecordLogin(observability.LoginError)
		return nil, err
	}

	upgraded := false
	if kind == auth.CredentialPlaintext && s.upgradeLegacy {
		if rehashed, err := s.upgradeCredential(ctx, client.ID, password); err != nil {
			s.logger.Warn("legacy credential upgrade failed", zap.String("client_id", client.ID), zap.Error(err))
		} else {
			loggedIn = rehashed
			upgraded = true
		}
	}

	s.metrics.RecordLogin(observability.LoginSucceeded)
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventClientLoggedIn,
		ClientID: loggedIn.ID,
		Payload: events.ClientLoggedInPayload{
			Contacto:       loggedIn.Contacto,
			CredentialKind: kind.String(),
			Upgraded:       upgraded,
		},
	})
	return loggedIn, nil
}

// RegisterClient validates input and stores a new active client with a
// hashed password.
func (s *AuthService) RegisterClient(ctx context.Context, nombre, contacto, password string) (*domain.Client, error) {
	nombre = strings.TrimSpace(nombre)
	input := registrationInput{Nombre: nombre, Contacto: contacto, Password: password}
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	contacto = sanitize.Escape(contacto)
	existing, err := s.clients.FindByContact(ctx, contacto)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateClient(contacto)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	client := &domain.Client{
		ID:                  uuid.NewString(),
		Contacto:            contacto,
		Nombre:              sanitize.Escape(nombre),
		Password:            hash,
		Activo:              true,
		Registrado:          true,
		FechaAlta:           now,
		FechaCambioPassword: now,
	}
	// The pre-check above only gives early feedback; Create is the gate.
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventClientRegistered,
		ClientID: client.ID,
		Payload:  events.ClientRegisteredPayload{Contacto: client.Contacto, Nombre: client.Nombre},
	})
	return client, nil
}

// ResetPassword hashes newPassword and stores it on the client found by
// contacto. The write is keyed by the client's id.
func (s *AuthService) ResetPassword(ctx context.Context, contacto, newPassword string) error {
	if err := s.validator.Struct(passwordResetInput{Contacto: contacto, Password: newPassword}); err != nil {
		return err
	}

	client, err := s.clients.FindByContact(ctx, sanitize.Escape(contacto))
	if err != nil {
		return err
	}
	if client == nil {
		return apperrors.NewNotFound("client", map[string]any{"contacto": contacto})
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if _, err := s.clients.UpdatePassword(ctx, client.ID, hash, s.now()); err != nil {
		return err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventClientPasswordReset,
		ClientID: client.ID,
	})
	return nil
}

// HashPassword hashes plaintext with the configured cost.
func (s *AuthService) HashPassword(plaintext string) (string, error) {
	return auth.HashPassword(plaintext, s.bcryptCost)
}

func (s *AuthService) verify(ctx context.Context, contacto, password string) (*domain.Client, auth.CredentialKind, error) {
	if err := s.validator.Struct(credentialsInput{Contacto: contacto, Password: password}); err != nil {
		return nil, 0, err
	}

	client, err := s.clients.FindByContact(ctx, sanitize.Escape(contacto))
	if err != nil {
		return nil, 0, err
	}
	if client == nil {
		return nil, 0, apperrors.NewNotFound("client", nil)
	}
	credential, ok := auth.ParseCredential(client.Password)
	if !ok {
		return nil, 0, apperrors.NewNotFound("client credential", nil)
	}
	if !credential.Verify(password) {
		return nil, 0, apperrors.NewInvalidCredentials()
	}
	if credential.Kind() == auth.CredentialPlaintext {
		s.metrics.RecordLegacyLogin()
		s.logger.Warn("login matched plaintext stored password", zap.String("client_id", client.ID))
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventLegacyCredentialUsed,
			ClientID: client.ID,
		})
	}
	if !client.Activo {
		return nil, 0, apperrors.NewInactiveAccount()
	}
	return client, credential.Kind(), nil
}

func (s *AuthService) upgradeCredential(ctx context.Context, id, password string) (*domain.Client, error) {
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperrors.NewValidationError("password too long to hash", nil)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	return s.clients.UpdatePassword(ctx, id, hash, s.now())
}

func loginOutcome(err error) string {
	switch apperrors.ToDomainError(err).Code {
	case apperrors.CodeInvalidCredentials:
		return observability.LoginInvalidCredentials
	case apperrors.CodeInactiveAccount:
		return observability.LoginInactive
	case apperrors.CodeNotFound:
		return observability.LoginNotFound
	default:
		return observability.LoginError
	}
}
