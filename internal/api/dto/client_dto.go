package dto

import (
	"time"

	"github.com/mesa-ayuda/helpdesk-service/internal/domain"
)

// LoginRequest payload for POST /clientes/login.
type LoginRequest struct {
	Contacto string `json:"contacto"`
	Password string `json:"password"`
}

// RegisterRequest payload for POST /clientes/registro.
type RegisterRequest struct {
	Nombre   string `json:"nombre"`
	Contacto string `json:"contacto"`
	Password string `json:"password"`
}

// ResetPasswordRequest payload for POST /clientes/resetPassword.
type ResetPasswordRequest struct {
	Contacto string `json:"contacto"`
	Password string `json:"password"`
}

// UpdateClientRequest payload for POST /clientes/update. Password is
// accepted only so a body carrying one can be rejected.
type UpdateClientRequest struct {
	ID         string  `json:"id"`
	Nombre     *string `json:"nombre"`
	Activo     *bool   `json:"activo"`
	Registrado *bool   `json:"registrado"`
	Password   *string `json:"password"`
}

// Patch extracts the profile fields.
func (r UpdateClientRequest) Patch() domain.ClientProfilePatch {
	return domain.ClientProfilePatch{
		Nombre:     r.Nombre,
		Activo:     r.Activo,
		Registrado: r.Registrado,
	}
}

// LoginResponse echoes the authenticated identity.
type LoginResponse struct {
	Response           string     `json:"response"`
	ID                 string     `json:"id"`
	Contacto           string     `json:"contacto"`
	Nombre             string     `json:"nombre"`
	FechaUltimoIngreso *time.Time `json:"fecha_ultimo_ingreso"`
}

// ClientResponse is the public view of a client. It never carries the
// stored password.
type ClientResponse struct {
	ID                 string     `json:"id"`
	Contacto           string     `json:"contacto"`
	Nombre             string     `json:"nombre"`
	Activo             bool       `json:"activo"`
	Registrado         bool       `json:"registrado"`
	FechaAlta          time.Time  `json:"fecha_alta"`
	FechaUltimoIngreso *time.Time `json:"fecha_ultimo_ingreso"`
}

// NewClientResponse maps a domain client.
func NewClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{
		ID:                 c.ID,
		Contacto:           c.Contacto,
		Nombre:             c.DisplayName(),
		Activo:             c.Activo,
		Registrado:         c.Registrado,
		FechaAlta:          c.FechaAlta,
		FechaUltimoIngreso: c.FechaUltimoIngreso,
	}
}
