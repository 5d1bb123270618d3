package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by services and the HTTP boundary.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicateClient    = "DUPLICATE_CLIENT"
	CodeDuplicateTicket    = "DUPLICATE_TICKET"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInactiveAccount    = "INACTIVE_ACCOUNT"
	CodeForbidden          = "FORBIDDEN"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeStoreError         = "STORE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code only.
var (
	ErrValidation         = &DomainError{Code: CodeValidation}
	ErrNotFound           = &DomainError{Code: CodeNotFound}
	ErrDuplicateClient    = &DomainError{Code: CodeDuplicateClient}
	ErrDuplicateTicket    = &DomainError{Code: CodeDuplicateTicket}
	ErrInvalidCredentials = &DomainError{Code: CodeInvalidCredentials}
	ErrInactiveAccount    = &DomainError{Code: CodeInactiveAccount}
	ErrForbidden          = &DomainError{Code: CodeForbidden}
	ErrStoreUnavailable   = &DomainError{Code: CodeStoreUnavailable}
	ErrStoreError         = &DomainError{Code: CodeStoreError}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewDuplicateClient(contacto string) error {
	return NewDomainError(CodeDuplicateClient, "client already exists", http.StatusConflict,
		map[string]any{"contacto": contacto})
}

func NewDuplicateTicket(id string) error {
	return NewDomainError(CodeDuplicateTicket, "ticket already exists", http.StatusConflict,
		map[string]any{"id": id})
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid credentials", http.StatusUnauthorized, nil)
}

func NewInactiveAccount() error {
	return NewDomainError(CodeInactiveAccount, "client account inactive", http.StatusForbidden, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewStoreError wraps a persistence failure. Deadline expiry becomes
// STORE_UNAVAILABLE, everything else STORE_ERROR.
func NewStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeStoreUnavailable,
			Message:    "document store unavailable",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeStoreError,
		Message:    "document store failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	de, _ := NewInternalError(err).(*DomainError)
	return de
}

// FromHTTPStatus builds a DomainError for a bare HTTP status raised by the router.
func FromHTTPStatus(status int, message string) *DomainError {
	code := fmt.Sprintf("HTTP_%d", status)
	switch status {
	case http.StatusBadRequest:
		code = CodeValidation
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusForbidden:
		code = CodeForbidden
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}
