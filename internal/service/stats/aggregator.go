// Package stats summarizes a learner's progress, overall or per module.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/events"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/samber/lo"
)

// DefaultCacheTTL is how long a summary is served from cache.
const DefaultCacheTTL = 30 * time.Second

// ModuleCatalog reports module sizes from the content system.
type ModuleCatalog interface {
	// ModuleCardCount returns the number of cards in a module, or an error
	// wrapping store.ErrModuleNotFound.
	ModuleCardCount(ctx context.Context, moduleID uuid.UUID) (int, error)
}

// Statistics is a point-in-time summary of a learner's progress.
type Statistics struct {
	UserID        uuid.UUID                  `json:"user_id"`
	ModuleID      *uuid.UUID                 `json:"module_id,omitempty"`
	TotalCards    int                        `json:"total_cards"`
	MasteredCount int                        `json:"mastered_count"`
	ReviewedCount int                        `json:"reviewed_count"`
	DueTodayCount int                        `json:"due_today_count"`
	ByTier        map[domain.MasteryTier]int `json:"by_tier"`
	GeneratedAt   time.Time                  `json:"generated_at"`
}

// clone returns a deep copy so cached summaries are never shared.
func (s *Statistics) clone() *Statistics {
	out := *s
	if s.ModuleID != nil {
		id := *s.ModuleID
		out.ModuleID = &id
	}
	out.ByTier = make(map[domain.MasteryTier]int, len(s.ByTier))
	for tier, n := range s.ByTier {
		out.ByTier[tier] = n
	}
	return &out
}

// Config holds the aggregator's tunables.
type Config struct {
	Classifier     srs.Classifier
	MasteredPolicy due.MasteredPolicy
	CacheTTL       time.Duration
	Retry          store.RetryPolicy
	// Now defaults to time.Now.
	Now func() time.Time
}

// Aggregator computes Statistics from review states. It never writes.
type Aggregator struct {
	states  store.ReviewStateStore
	catalog ModuleCatalog
	config  Config
	cache   *cache
	logger  *slog.Logger
}

var _ events.EventHandler = (*Aggregator)(nil)

// NewAggregator creates an Aggregator. A zero CacheTTL selects
// DefaultCacheTTL; a negative one disables caching.
func NewAggregator(states store.ReviewStateStore, catalog ModuleCatalog, config Config, logger *slog.Logger) *Aggregator {
	if states == nil {
		panic("states cannot be nil")
	}
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.MasteredPolicy == "" {
		config.MasteredPolicy = due.MasteredExclude
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		states:  states,
		catalog: catalog,
		config:  config,
		cache:   newCache(config.CacheTTL, config.Now),
		logger:  logger.With(slog.String("component", "stats_aggregator")),
	}
}

// Summarize returns the user's statistics, restricted to a module when
// moduleID is non-nil. Results may be up to CacheTTL old unless a review by
// the user has been recorded since.
func (a *Aggregator) Summarize(ctx context.Context, userID uuid.UUID, moduleID *uuid.UUID) (*Statistics, error) {
	key := cacheKey{userID: userID}
	if moduleID != nil {
		id := *moduleID
		key.moduleID = id
		moduleID = &id
	}

	summary, err := a.cache.getOrLoad(key, func() (*Statistics, error) {
		return a.compute(ctx, userID, moduleID)
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, a.logger).Error("failed to summarize statistics",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	return summary, nil
}

// Invalidate drops every cached summary for the user.
func (a *Aggregator) Invalidate(userID uuid.UUID) {
	a.cache.invalidate(userID)
}

// HandleEvent invalidates the reviewer's cached summaries on
// events.TypeReviewRecorded and ignores other events.
func (a *Aggregator) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeReviewRecorded {
		return nil
	}
	var payload events.ReviewRecorded
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode review event: %w", err)
	}
	a.Invalidate(payload.UserID)
	return nil
}

// EndOfDay returns the last instant of t's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

func (a *Aggregator) compute(ctx context.Context, userID uuid.UUID, moduleID *uuid.UUID) (*Statistics, error) {
	now := a.config.Now().UTC()

	var states []*domain.ReviewState
	total := -1
	err := store.WithRetry(ctx, a.config.Retry, func(ctx context.Context) error {
		var err error
		if moduleID == nil {
			states, err = a.states.QueryByUser(ctx, userID)
			return err
		}
		if total, err = a.catalog.ModuleCardCount(ctx, *moduleID); err != nil {
			return err
		}
		states, err = a.states.QueryByModule(ctx, userID, *moduleID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load review states: %w", err)
	}

	classify := a.config.Classifier.Classify
	byTier := lo.MapValues(
		lo.GroupBy(states, func(s *domain.ReviewState) domain.MasteryTier { return classify(s) }),
		func(group []*domain.ReviewState, _ domain.MasteryTier) int { return len(group) },
	)
	for _, tier := range domain.MasteryTiers {
		if _, ok := byTier[tier]; !ok {
			byTier[tier] = 0
		}
	}

	// Cards in the module that the learner has never opened are New.
	if total < len(states) {
		total = len(states)
	} else {
		byTier[domain.MasteryNew] += total - len(states)
	}

	filter := store.DueFilter{AsOf: EndOfDay(now)}
	if a.config.MasteredPolicy == due.MasteredExclude {
		filter.MasteredIntervalDays = a.config.Classifier.MasteryThresholdDays
	}

	return &Statistics{
		UserID:        userID,
		ModuleID:      moduleID,
		TotalCards:    total,
		MasteredCount: byTier[domain.MasteryMastered],
		ReviewedCount: lo.CountBy(states, func(s *domain.ReviewState) bool { return s.Reviewed() }),
		DueTodayCount: lo.CountBy(states, filter.Matches),
		ByTier:        byTier,
		GeneratedAt:   now,
	}, nil
}
