package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a DatabaseError so callers can branch without parsing messages.
type Kind string

const (
	KindConnectionFailed     Kind = "CONNECTION_FAILED"
	KindQueryError           Kind = "QUERY_ERROR"
	KindTimeout              Kind = "TIMEOUT"
	KindAuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	KindNetworkError         Kind = "NETWORK_ERROR"
	KindEncryptionError      Kind = "ENCRYPTION_ERROR"
	KindStorageError         Kind = "STORAGE_ERROR"
)

// DatabaseError is the error type returned across the connection manager and
// credential store boundaries. Message is for display; Kind is stable.
type DatabaseError struct {
	Kind         Kind           `json:"type"`
	Message      string         `json:"message"`
	ConnectionID string         `json:"connectionId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Cause        error          `json:"-"`
}

// New creates a DatabaseError with no underlying cause.
func New(kind Kind, message string) *DatabaseError {
	return &DatabaseError{Kind: kind, Message: message}
}

// Newf is New with fmt-style formatting.
func Newf(kind Kind, format string, args ...any) *DatabaseError {
	return &DatabaseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a DatabaseError that keeps cause reachable through errors.Is/As.
func Wrap(kind Kind, message string, cause error) *DatabaseError {
	return &DatabaseError{Kind: kind, Message: message, Cause: cause}
}

// WithConnection sets the connection id and returns the same error for chaining.
func (e *DatabaseError) WithConnection(id string) *DatabaseError {
	e.ConnectionID = id
	return e
}

// WithDetails attaches structured details and returns the same error for chaining.
func (e *DatabaseError) WithDetails(details map[string]any) *DatabaseError {
	e.Details = details
	return e
}

func (e *DatabaseError) Error() string {
	return e.Message
}

func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of the first DatabaseError in err's chain.
func KindOf(err error) (Kind, bool) {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a DatabaseError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
