package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("booking is being modified concurrently")
	ErrInvalidTransition   = errors.New("invalid booking transition")
	ErrIntegrationDisabled = errors.New("supplier integration is disabled")
)

// TransportError covers network failures, timeouts and supplier 5xx answers.
// The operation may be retried unchanged.
type TransportError struct {
	Op      string
	Timeout bool
	Status  int
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("supplier %s: timeout: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("supplier %s: status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("supplier %s: unreachable: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a business rejection. Retrying without changed input fails again.
type RejectedError struct {
	Op      string
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("supplier %s rejected: %s: %s", e.Op, e.Code, e.Message)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RejectionCode returns the supplier code of a rejection, or "".
func RejectionCode(err error) string {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
