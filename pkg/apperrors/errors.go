package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrConnectionLimitReached = errors.New("connection limit reached")
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)
