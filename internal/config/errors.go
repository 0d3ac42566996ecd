package config

import (
	"errors"
	"fmt"
)

// Error is a ConfigurationError: an invalid or unknown configuration value,
// a missing structure reference, or an unreachable protocol file. It surfaces
// immediately, before a run is started.
type Error struct {
	// Field is the dotted path of the offending key, if known.
	Field string
	// Message is a human-readable description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("config %s: %s", e.Field, msg)
	}
	return "config: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a configuration error for field.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
