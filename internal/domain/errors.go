package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound marks a missing issue, spec or remote record.
var ErrNotFound = errors.New("not found")

// UsageError is a caller mistake such as an unknown stage, status or format.
type UsageError struct {
	Msg string
}

func (e UsageError) Error() string { return e.Msg }

// ValidationError reports every business rule blocking a transition.
type ValidationError struct {
	Subject string
	Target  string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s cannot move to %s: %s", e.Subject, e.Target, strings.Join(e.Reasons, "; "))
}

// PersistenceError wraps storage failures that abort the current invocation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it is nil or already classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsUsage reports whether err is a UsageError.
func IsUsage(err error) bool {
	var ue UsageError
	return errors.As(err, &ue)
}

// AsValidation extracts a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
