package domain

import "time"

// Client is a registered help-desk customer.
type Client struct {
	ID                  string
	Contacto            string
	Nombre              string
	Password            string
	Activo              bool
	Registrado          bool
	FechaAlta           time.Time
	FechaUltimoIngreso  *time.Time
	FechaCambioPassword time.Time
}

// DefaultDisplayName is echoed when a legacy record carries no nombre.
const DefaultDisplayName = "Usuario"

// DisplayName returns the nombre or the default placeholder.
func (c *Client) DisplayName() string {
	if c.Nombre == "" {
		return DefaultDisplayName
	}
	return c.Nombre
}

// ClientProfilePatch lists the profile fields an administrative update may
// touch. Nil means unchanged. Passwords change only through a reset.
type ClientProfilePatch struct {
	Nombre     *string
	Activo     *bool
	Registrado *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p ClientProfilePatch) IsEmpty() bool {
	return p.Nombre == nil && p.Activo == nil && p.Registrado == nil
}
