package thc

import (
	"errors"
	"fmt"
)

// Common errors returned by the lookup client.
var (
	// ErrNoRecords marks a 404 from the API: the domain has no records.
	// This is an expected zero-result outcome, not a fault.
	ErrNoRecords = errors.New("no records for domain")
)

// LookupError is a classified page-fetch failure.
type LookupError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("lookup %s error (status %d): %v", e.Class, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("lookup %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("lookup %s error: %v", e.Class, e.Err)
	default:
		return fmt.Sprintf("lookup %s error: %s", e.Class, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient fault worth the one
// bounded retry: a timeout, a connection error, or a 5xx response.
func IsRetryable(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Class == ErrorClassRetryable
}

// IsNotFound reports whether err marks a domain with no records.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoRecords)
}
