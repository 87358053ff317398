// Package due answers which of a learner's cards are due for review.
package due

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/store"
)

// MasteredPolicy decides whether mastered cards appear in due results.
type MasteredPolicy string

const (
	// MasteredExclude leaves mastered cards out of due counts and lists.
	MasteredExclude MasteredPolicy = "exclude"
	// MasteredInclude treats mastered cards like any other due card.
	MasteredInclude MasteredPolicy = "include"
)

// ParseMasteredPolicy converts a configuration value to a MasteredPolicy.
// An empty value selects MasteredExclude.
func ParseMasteredPolicy(value string) (MasteredPolicy, error) {
	switch MasteredPolicy(value) {
	case "", MasteredExclude:
		return MasteredExclude, nil
	case MasteredInclude:
		return MasteredInclude, nil
	default:
		return "", fmt.Errorf("unknown mastered policy %q", value)
	}
}

// Config holds the resolver's tunables.
type Config struct {
	MasteredPolicy MasteredPolicy
	Classifier     srs.Classifier
	Retry          store.RetryPolicy
}

// MaxPageSize caps the number of cards returned by one DueCards call.
const MaxPageSize = 200

// DuePage is one page of due cards. Next is nil on the last page.
type DuePage struct {
	Cards []*domain.ReviewState `json:"cards"`
	Next  *store.Cursor         `json:"next,omitempty"`
}

// Resolver answers due-set queries for a learner. It never writes.
type Resolver struct {
	states store.ReviewStateStore
	config Config
	logger *slog.Logger
}

// NewResolver creates a Resolver. If logger is nil, a default logger will be used.
func NewResolver(states store.ReviewStateStore, config Config, logger *slog.Logger) *Resolver {
	if states == nil {
		panic("states cannot be nil")
	}
	if config.MasteredPolicy == "" {
		config.MasteredPolicy = MasteredExclude
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		states: states,
		config: config,
		logger: logger.With(slog.String("component", "due_resolver")),
	}
}

// Filter returns the store filter for due cards as of asOf under the
// resolver's mastered policy.
func (r *Resolver) Filter(asOf time.Time) store.DueFilter {
	filter := store.DueFilter{AsOf: asOf.UTC()}
	if r.config.MasteredPolicy == MasteredExclude {
		filter.MasteredIntervalDays = r.config.Classifier.MasteryThresholdDays
	}
	return filter
}

// DueCount returns the number of the user's cards due at or before asOf.
func (r *Resolver) DueCount(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error) {
	var count int
	err := store.WithRetry(ctx, r.config.Retry, func(ctx context.Context) error {
		var err error
		count, err = r.states.CountDue(ctx, userID, r.Filter(asOf))
		return err
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Error("failed to count due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

// DueCards returns one page of the user's due cards ordered by due date,
// then card ID. Pass the previous page's Next to continue.
func (r *Resolver) DueCards(
	ctx context.Context,
	userID uuid.UUID,
	asOf time.Time,
	page store.Page,
) (*DuePage, error) {
	page = page.Normalize()
	if page.Limit > MaxPageSize {
		page.Limit = MaxPageSize
	}

	// One extra row tells us whether another page exists.
	lookahead := page
	lookahead.Limit = page.Limit + 1

	var states []*domain.ReviewState
	err := store.WithRetry(ctx, r.config.Retry, func(ctx context.Context) error {
		var err error
		states, err = r.states.QueryDue(ctx, userID, r.Filter(asOf), lookahead)
		return err
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}

	result := &DuePage{Cards: states}
	if len(states) > page.Limit {
		result.Cards = states[:page.Limit]
		last := result.Cards[len(result.Cards)-1]
		result.Next = &store.Cursor{DueAt: last.DueAt, CardID: last.CardID}
	}
	if result.Cards == nil {
		result.Cards = []*domain.ReviewState{}
	}
	for _, state := range result.Cards {
		r.config.Classifier.Tag(state)
	}
	return result, nil
}
