package content

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound is returned when a post id names no file.
	ErrPostNotFound = errors.New("post not found")

	// ErrThoughtNotFound is returned when an id is absent from the ledger.
	ErrThoughtNotFound = errors.New("thought not found")

	// ErrInvalid matches every *ValidationError.
	ErrInvalid = errors.New("invalid input")

	// ErrRenameIncomplete is returned by UpdatePost when the post was
	// written under its new id but the old file could not be deleted. Both
	// files exist until the old one is removed by hand or a later delete.
	ErrRenameIncomplete = errors.New("rename incomplete")

	// ErrCorruptLedger is returned when thoughts.json does not parse. The
	// ledger is left untouched.
	ErrCorruptLedger = errors.New("thoughts ledger is not a JSON array of thoughts")
)

// ValidationError rejects input before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
