package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorKind classifies every failure the core can produce. Validation and
// resolution kinds never follow a side effect; backend kinds are surfaced
// with whatever the backend reported.
type ErrorKind string

const (
	ErrUnknownCommand     ErrorKind = "UNKNOWN_COMMAND"
	ErrMissingParameter   ErrorKind = "MISSING_PARAMETER"
	ErrInvalidParameter   ErrorKind = "INVALID_PARAMETER"
	ErrEntityNotFound     ErrorKind = "ENTITY_NOT_FOUND"
	ErrAmbiguousEntity    ErrorKind = "AMBIGUOUS_ENTITY"
	ErrDuplicateSuspected ErrorKind = "DUPLICATE_SUSPECTED"
	ErrBackend            ErrorKind = "BACKEND_ERROR"
	ErrUncertainOutcome   ErrorKind = "UNCERTAIN_OUTCOME"
	ErrPolicyViolation    ErrorKind = "POLICY_VIOLATION"
	ErrInvalidTransition  ErrorKind = "INVALID_TRANSITION"
)

// Error is the typed error carried through the router and services.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Field      string    `json:"field,omitempty"`
	Op         string    `json:"op,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	Wrapped    error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// NewError builds a typed error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FieldError builds a validation error naming the offending parameter.
func FieldError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Field: field}
}

// BackendError wraps a failed adapter call with the operation attempted so
// the caller can decide whether to retry. The underlying message is kept
// verbatim.
func BackendError(op string, err error) *Error {
	return &Error{Kind: ErrBackend, Message: err.Error(), Op: op, Wrapped: err}
}

// UncertainError marks a write whose outcome is unknown (timeout or lost
// connection). Duplicate checking treats the attempt as possibly posted.
func UncertainError(op string, err error) *Error {
	return &Error{Kind: ErrUncertainOutcome, Message: err.Error(), Op: op, Wrapped: err}
}

// KindOf extracts the error kind, defaulting to BACKEND_ERROR for
// untyped errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrBackend
}

// Envelope is the uniform command response: exactly one of Data or Err is
// set.
type Envelope struct {
	OK   bool   `json:"ok"`
	Data any    `json:"data,omitempty"`
	Err  *Error `json:"error,omitempty"`
}

// OKEnvelope wraps a successful result.
func OKEnvelope(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

// ErrEnvelope wraps a failure, coercing untyped errors into the taxonomy.
func ErrEnvelope(err error) Envelope {
	var ce *Error
	if !errors.As(err, &ce) {
		ce = &Error{Kind: ErrBackend, Message: err.Error(), Wrapped: err}
	}
	return Envelope{OK: false, Err: ce}
}

// HTTPStatus maps error kinds onto HTTP status codes for the echo layer.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrUnknownCommand, ErrEntityNotFound:
		return http.StatusNotFound
	case ErrMissingParameter, ErrInvalidParameter, ErrInvalidTransition:
		return http.StatusBadRequest
	case ErrAmbiguousEntity, ErrDuplicateSuspected, ErrPolicyViolation:
		return http.StatusConflict
	case ErrUncertainOutcome:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// SendEnvelope writes an envelope with the status implied by its contents.
func SendEnvelope(c echo.Context, env Envelope) error {
	if env.OK {
		return c.JSON(http.StatusOK, env)
	}
	return c.JSON(HTTPStatus(env.Err.Kind), env)
}
