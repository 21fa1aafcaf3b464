// Package errs defines the agent's error taxonomy. Critical errors halt the
// agent (authentication failure, portfolio corruption after trading has
// begun, reconciliation failure); everything else is minor and handled
// per-symbol or per-cycle.
package errs

import (
	"errors"
	"fmt"
)

// CriticalError marks a failure with no safe fallback. The main loop stops
// and alerts when one surfaces.
type CriticalError struct {
	Reason string
	Err    error
}

func (e *CriticalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("critical: %s: %v", e.Reason, e.Err)
	}
	return "critical: " + e.Reason
}

func (e *CriticalError) Unwrap() error { return e.Err }

// Criticalf builds a CriticalError from a format string.
func Criticalf(format string, args ...interface{}) error {
	return &CriticalError{Reason: fmt.Sprintf(format, args...)}
}

// WrapCritical attaches a cause.
func WrapCritical(err error, reason string) error {
	return &CriticalError{Reason: reason, Err: err}
}

// IsCritical reports whether err carries a CriticalError anywhere in its
// chain.
func IsCritical(err error) bool {
	var ce *CriticalError
	return errors.As(err, &ce)
}
