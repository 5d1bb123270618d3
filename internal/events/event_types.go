package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventClientRegistered     EventType = "client_registered"
	EventClientLoggedIn       EventType = "client_logged_in"
	EventClientPasswordReset  EventType = "client_password_reset"
	EventLegacyCredentialUsed EventType = "legacy_credential_used"
	EventTicketCreated        EventType = "ticket_created"
	EventTicketUpdated        EventType = "ticket_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ClientID  string      `json:"client_id"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ClientRegisteredPayload payload.
type ClientRegisteredPayload struct {
	Contacto string `json:"contacto"`
	Nombre   string `json:"nombre"`
}

// ClientLoggedInPayload payload.
type ClientLoggedInPayload struct {
	Contacto       string `json:"contacto"`
	CredentialKind string `json:"credential_kind"`
	Upgraded       bool   `json:"upgraded"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Estado             string `json:"estado"`
	DescripcionPreview string `json:"descripcion_preview"`
}

// TicketUpdatedPayload lists the fields an update changed.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
	Estado string   `json:"estado"`
}
