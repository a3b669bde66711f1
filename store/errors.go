package store

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("sha mismatch")
	ErrExists       = errors.New("file already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrTransient    = errors.New("transient remote failure")
	ErrTimeout      = errors.New("remote call timed out")
)

// Error records a failed store operation.
type Error struct {
	Op   string
	Path string
	Kind error // one of the Err* kinds, or nil
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := "store: " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is makes a timeout also count as a transient failure.
func (e *Error) Is(target error) bool {
	return target == ErrTransient && e.Kind == ErrTimeout
}

// RateLimitError is returned when the remote refuses work until its rate
// window resets. It is never retried automatically.
type RateLimitError struct {
	// Reset is when the window resets. Zero when the remote did not say.
	Reset time.Time
	Err   error
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "store: rate limited"
	}
	return fmt.Sprintf("store: rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) Unwrap() error { return e.Err }
