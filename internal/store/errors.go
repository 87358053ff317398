package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional write finds that the row
	// changed (or appeared) since it was read. Nothing is written.
	ErrConflict = errors.New("entity changed concurrently")

	// ErrStoreUnavailable is returned when the backing database cannot be
	// reached or is temporarily refusing work. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrWriteOutcomeUnknown is returned when the connection failed after a
	// write was sent, so it may or may not have committed. It is a kind of
	// ErrStoreUnavailable but is never retried blindly.
	ErrWriteOutcomeUnknown = fmt.Errorf("%w: write outcome unknown", ErrStoreUnavailable)

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrReviewStateNotFound indicates that no review state exists for a user and card.
	ErrReviewStateNotFound = fmt.Errorf("%w: review state", ErrNotFound)

	// ErrCardNotFound indicates that the content system has no such card.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)

	// ErrModuleNotFound indicates that the content system has no such module.
	ErrModuleNotFound = fmt.Errorf("%w: module", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if the error is an optimistic-concurrency conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnavailableError checks if the error signals a transient storage failure.
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsRetryableError reports whether repeating the failed operation is safe:
// the store was unavailable and no write may have been applied.
func IsRetryableError(err error) bool {
	return IsUnavailableError(err) && !errors.Is(err, ErrWriteOutcomeUnknown)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "review_state")
	Operation string // The operation that failed (e.g., "upsert", "query_due")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
