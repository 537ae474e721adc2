package tradelog

import (
	"context"
	"errors"
	"fmt"

	"trade-recorder/internal/store"
)

// ValidationError reports a record that must not reach the store.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

// Store operations reported by StoreUnavailableError.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// StoreUnavailableError reports a read or write against the table store
// that failed for any reason other than the table being absent.
type StoreUnavailableError struct {
	Table string
	Op    string
	Err   error
	// Uncertain is set when a write failed without an answer from the
	// store, so the row may have been saved anyway.
	Uncertain bool
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("trade log %q: %s failed: %v", e.Table, e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Hint tells the operator what to check.
func (e *StoreUnavailableError) Hint() string {
	if e.Op == OpRead {
		return "Could not reach the trade log store. Check the store credentials and connection settings."
	}
	if e.Uncertain {
		return fmt.Sprintf("The store did not confirm the write, so the trade may have been saved. Check the latest rows of %q before entering it again.", e.Table)
	}
	return fmt.Sprintf("Could not write the trade log. Verify that the %q table exists and that the configured account has write permission.", e.Table)
}

func IsStoreUnavailable(err error) bool {
	var storeErr *StoreUnavailableError
	return errors.As(err, &storeErr)
}

// writeOutcomeUnknown reports whether a failed write may still have been applied.
func writeOutcomeUnknown(err error) bool {
	return errors.Is(err, store.ErrOutcomeUnknown) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
