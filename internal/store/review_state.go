package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
)

// MinimumEaseFactor is the lowest ease factor any store will persist.
// The configured floor enforced by the scheduler is at or above it.
const MinimumEaseFactor = 1.0

// DueFilter selects the review states that count as due.
type DueFilter struct {
	// AsOf is the reference instant; states with DueAt <= AsOf are due.
	AsOf time.Time

	// MasteredIntervalDays, when positive, excludes states whose interval has
	// reached this many days (the mastery threshold).
	MasteredIntervalDays int
}

// Matches applies the filter to a single state in memory, with the same
// semantics the stores use in SQL.
func (f DueFilter) Matches(state *domain.ReviewState) bool {
	if state == nil || state.DueAt.After(f.AsOf) {
		return false
	}
	return f.MasteredIntervalDays <= 0 || state.IntervalDays < f.MasteredIntervalDays
}

// Cursor marks the last row of a due page. Rows are ordered by DueAt, then CardID.
type Cursor struct {
	DueAt  time.Time `json:"due_at"`
	CardID uuid.UUID `json:"card_id"`
}

// Page bounds a due query. A nil After starts from the beginning.
type Page struct {
	Limit int
	After *Cursor
}

// DefaultPageLimit is applied when a page has no positive limit.
const DefaultPageLimit = 50

// MaxPageLimit caps the number of rows returned by a single page.
const MaxPageLimit = 500

// Normalize clamps the page limit into [1, MaxPageLimit].
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// ReviewStateStore defines the interface for review state persistence.
type ReviewStateStore interface {
	// Get retrieves the review state for a user and card.
	// Returns ErrReviewStateNotFound if the card has never been reviewed.
	Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error)

	// UpsertIfUnchanged writes state only if the stored version still equals
	// expectedVersion (zero meaning "no row yet"). On success state.Version is
	// set to the new version. Returns ErrConflict, without writing, when the
	// precondition fails.
	UpsertIfUnchanged(ctx context.Context, state *domain.ReviewState, expectedVersion int64) error

	// QueryDue returns due states for a user ordered by DueAt then CardID,
	// starting after page.After.
	QueryDue(ctx context.Context, userID uuid.UUID, filter DueFilter, page Page) ([]*domain.ReviewState, error)

	// CountDue returns the number of due states for a user.
	CountDue(ctx context.Context, userID uuid.UUID, filter DueFilter) (int, error)

	// QueryByModule returns every state the user has for cards in a module.
	QueryByModule(ctx context.Context, userID, moduleID uuid.UUID) ([]*domain.ReviewState, error)

	// QueryByUser returns every state the user has.
	QueryByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReviewState, error)

	// ListUsersWithDue returns up to limit user IDs greater than after that
	// have at least one due state, in ascending order.
	ListUsersWithDue(ctx context.Context, filter DueFilter, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
