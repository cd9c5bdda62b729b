// Package apperr implements the error taxonomy every service boundary maps
// its domain/store errors onto before they reach an HTTP response or a
// WebSocket ack (spec §7).
package apperr

import (
	"errors"
	"net/http"
)

// Code is one of the fixed taxonomy values. New values are never added
// ad hoc by a handler; they're declared here and nowhere else.
type Code string

const (
	InvalidInput       Code = "INVALID_INPUT"
	Unauthenticated    Code = "UNAUTHENTICATED"
	Unauthorized       Code = "UNAUTHORIZED"
	NotFound           Code = "NOT_FOUND"
	Conflict           Code = "CONFLICT"
	DomainRule         Code = "DOMAIN_RULE"
	StoreUnavailable   Code = "STORE_UNAVAILABLE"
	ExternalUnavailable Code = "EXTERNAL_UNAVAILABLE"
	Internal           Code = "INTERNAL"
)

// Error wraps a taxonomy Code around a human message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a tagged error.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As extracts the *Error wrapper from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns err's Code, defaulting to Internal when err carries none.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return Internal
}

// ToHTTPStatus maps a Code onto its HTTP status line.
func ToHTTPStatus(code Code) int {
	switch code {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, DomainRule:
		return http.StatusConflict
	case StoreUnavailable, ExternalUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AckPayload is the shape an apperr.Error takes inside a WebSocket Ack
// (contracts.Ack's Code/Message/Fields, spec §6).
type AckPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// ToAckPayload renders err (tagged or not) as an AckPayload.
func ToAckPayload(err error) AckPayload {
	if e, ok := As(err); ok {
		return AckPayload{Code: string(e.Code), Message: e.Message}
	}
	return AckPayload{Code: string(Internal), Message: err.Error()}
}
