package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMetadata is matched by every parse failure.
var ErrMalformedMetadata = errors.New("malformed metadata")

// MalformedError reports which step and field violated the expected schema.
type MalformedError struct {
	Key    string // document key of the step, empty for document level errors
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMalformedMetadata.Error())
	if e.Key != "" {
		fmt.Fprintf(&b, ": step %q", e.Key)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedMetadata
}

func malformed(key, field, format string, args ...any) error {
	return &MalformedError{Key: key, Field: field, Reason: fmt.Sprintf(format, args...)}
}
