package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// UserError is a failure explained in the user's terms, with a suggested fix
// and the underlying cause.
type UserError struct {
	Message  string
	Solution string
	Err      error
}

func (e *UserError) Error() string {
	return render(e.Message, e.Solution, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new UserError
func NewUserError(message, solution string, err error) *UserError {
	return &UserError{
		Message:  message,
		Solution: solution,
		Err:      err,
	}
}

// ValidationError rejects a flag or configuration value before any request
// is made.
type ValidationError struct {
	Field   string // flag or configuration key, e.g. "--set"
	Message string
	Hint    string
	Err     error
}

func (e *ValidationError) Error() string {
	return render(fmt.Sprintf("%s: %s", e.Field, e.Message), e.Hint, e.Err)
}

// Unwrap exposes ErrInvalidInput and the cause, if any.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

// WithHint sets the suggested fix and returns e.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// WithCause sets the underlying error and returns e.
func (e *ValidationError) WithCause(err error) *ValidationError {
	e.Err = err
	return e
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func render(message, hint string, cause error) string {
	var b strings.Builder
	b.WriteString(message)
	if hint != "" {
		b.WriteString("\n  hint: " + hint)
	}
	if cause != nil {
		b.WriteString("\n  cause: " + cause.Error())
	}
	return b.String()
}
