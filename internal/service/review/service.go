package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
)

// ContentGateway is the engine's narrow view of the content system.
type ContentGateway interface {
	// Card returns the card's reference data, or an error wrapping
	// store.ErrCardNotFound if it does not exist.
	Card(ctx context.Context, cardID uuid.UUID) (*domain.CardRef, error)

	// IsCardAccessible reports whether the user may review the card.
	IsCardAccessible(ctx context.Context, userID, cardID uuid.UUID) (bool, error)
}

// Service records review events and reschedules cards.
type Service interface {
	// ReviewCard applies a quality rating to the user's state for a card and
	// persists the result.
	//
	// Returns:
	//   - (*domain.ReviewState, nil): the new state, with Status populated
	//   - ErrInvalidQuality: quality outside the configured scale; nothing is read or written
	//   - ErrCardNotFound / ErrForbidden: the card is unknown or not available to the user
	//   - ErrConflict: the state changed between read and write; nothing was written
	//   - ErrStoreUnavailable: storage failed after bounded retries
	ReviewCard(ctx context.Context, userID, cardID uuid.UUID, quality int, now time.Time) (*domain.ReviewState, error)
}

// Common error types for the review service
var (
	// ErrInvalidQuality indicates a quality rating outside the scale.
	ErrInvalidQuality = fmt.Errorf("invalid review: %w", srs.ErrInvalidQuality)

	// ErrCardNotFound indicates that the card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrForbidden indicates that the user may not review the card.
	ErrForbidden = errors.New("card not accessible to user")

	// ErrConflict indicates that another review of the same card won the write.
	ErrConflict = errors.New("review state changed concurrently")

	// ErrStoreUnavailable indicates a transient storage failure.
	ErrStoreUnavailable = errors.New("review storage temporarily unavailable")
)

// ServiceError wraps errors from the review service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "review_card")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewReviewCardError returns a new ServiceError for the review_card operation.
func NewReviewCardError(message string, err error) *ServiceError {
	return &ServiceError{
		Operation: "review_card",
		Message:   message,
		Err:       err,
	}
}
