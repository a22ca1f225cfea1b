package datasource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var fieldMessages = map[string]string{
	"Host":     "Host is required",
	"Port":     "Valid port is required",
	"Database": "Database name is required",
	"Username": "Username is required",
	"Password": "Password is required",
}

// ValidationError reports the first descriptor field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the fields every adapter needs before dialing.
// It returns a *ValidationError naming the first missing field.
func (d ConnectionDescriptor) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("invalid connection descriptor: %w", err)
	}

	field := fieldErrs[0].StructField()
	msg, ok := fieldMessages[field]
	if !ok {
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &ValidationError{Field: field, Message: msg}
}
