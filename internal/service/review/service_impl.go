package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/events"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	content    ContentGateway
	states     store.ReviewStateStore
	scheduler  srs.Service
	classifier srs.Classifier
	emitter    events.EventEmitter
	retry      store.RetryPolicy
	logger     *slog.Logger
}

// NewService creates a review coordinator. emitter may be nil when nothing
// subscribes to review events.
func NewService(
	content ContentGateway,
	states store.ReviewStateStore,
	scheduler srs.Service,
	classifier srs.Classifier,
	emitter events.EventEmitter,
	retry store.RetryPolicy,
	logger *slog.Logger,
) Service {
	if content == nil {
		panic("content cannot be nil")
	}
	if states == nil {
		panic("states cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		content:    content,
		states:     states,
		scheduler:  scheduler,
		classifier: classifier,
		emitter:    emitter,
		retry:      retry,
		logger:     logger.With(slog.String("component", "review_service")),
	}
}

// NormalizeTime converts t to UTC at microsecond precision, the resolution
// every store preserves.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ReviewCard implements Service.ReviewCard.
func (s *serviceImpl) ReviewCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	quality int,
	now time.Time,
) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("card_id", cardID.String()))

	params := s.scheduler.Params()
	if quality < 0 || quality > params.MaxQuality {
		log.Warn("invalid review quality", slog.Int("quality", quality))
		return nil, NewReviewCardError(fmt.Sprintf("quality %d outside [0, %d]", quality, params.MaxQuality),
			ErrInvalidQuality)
	}

	now = NormalizeTime(now)

	card, err := s.lookupCard(ctx, userID, cardID)
	if err != nil {
		log.Warn("review rejected", slog.String("error", err.Error()))
		return nil, err
	}

	var prior *domain.ReviewState
	err = store.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		var getErr error
		prior, getErr = s.states.Get(ctx, userID, cardID)
		return getErr
	})
	switch {
	case errors.Is(err, store.ErrReviewStateNotFound):
		prior = nil
	case err != nil:
		log.Error("failed to read review state", slog.String("error", err.Error()))
		return nil, s.storeError("failed to read review state", err)
	}

	next, err := s.scheduler.Advance(prior, quality, now)
	if err != nil {
		if errors.Is(err, srs.ErrInvalidQuality) {
			return nil, NewReviewCardError("quality rejected by scheduler", ErrInvalidQuality)
		}
		return nil, NewReviewCardError("failed to compute next state", err)
	}

	next.UserID = userID
	next.CardID = cardID
	if next.ModuleID == uuid.Nil {
		next.ModuleID = card.ModuleID
	}

	if err := next.Validate(params.MinEaseFactor); err != nil {
		log.Error("scheduler produced an invalid state", slog.String("error", err.Error()))
		return nil, NewReviewCardError("computed state failed validation", err)
	}

	var expectedVersion int64
	if prior != nil {
		expectedVersion = prior.Version
	}

	if err := s.persist(ctx, log, next, expectedVersion); err != nil {
		if store.IsConflictError(err) {
			log.Info("review lost a concurrent write", slog.Int64("expected_version", expectedVersion))
			return nil, NewReviewCardError("review state changed since it was read", fmt.Errorf("%w: %w", ErrConflict, err))
		}
		log.Error("failed to persist review state", slog.String("error", err.Error()))
		return nil, s.storeError("failed to persist review state", err)
	}

	s.classifier.Tag(next)
	s.emitRecorded(ctx, log, next, now)

	log.Debug("review recorded",
		slog.Int("quality", quality),
		slog.Int("interval_days", next.IntervalDays),
		slog.Float64("ease_factor", next.EaseFactor),
		slog.Time("due_at", next.DueAt),
		slog.String("status", string(next.Status)),
		slog.Int64("version", next.Version))

	return next, nil
}

// persist writes next with a version precondition. A write that may already
// have committed (its outcome was unknown, or a retry of it hit a conflict)
// is confirmed by re-reading the row rather than by applying the rating
// again.
func (s *serviceImpl) persist(ctx context.Context, log *slog.Logger, next *domain.ReviewState, expectedVersion int64) error {
	attempts := 0
	err := store.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		attempts++
		return s.states.UpsertIfUnchanged(ctx, next, expectedVersion)
	})
	if err == nil {
		return nil
	}

	uncertain := errors.Is(err, store.ErrWriteOutcomeUnknown) || (attempts > 1 && store.IsConflictError(err))
	if !uncertain {
		return err
	}

	var stored *domain.ReviewState
	readErr := store.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		var getErr error
		stored, getErr = s.states.Get(ctx, next.UserID, next.CardID)
		return getErr
	})
	if readErr != nil || !isSameWrite(stored, next, expectedVersion) {
		log.Warn("could not confirm review write",
			slog.String("error", err.Error()),
			slog.Int("attempts", attempts),
			slog.Int64("expected_version", expectedVersion))
		return err
	}

	log.Info("review write confirmed after connection failure",
		slog.Int("attempts", attempts),
		slog.Int64("version", stored.Version))
	next.Version = stored.Version
	return nil
}

// isSameWrite reports whether stored is the row a write of next over
// expectedVersion would have produced.
func isSameWrite(stored, next *domain.ReviewState, expectedVersion int64) bool {
	if stored == nil || stored.Version != expectedVersion+1 {
		return false
	}
	if stored.LastReviewedAt == nil || next.LastReviewedAt == nil ||
		!stored.LastReviewedAt.Equal(*next.LastReviewedAt) {
		return false
	}
	return stored.ReviewCount == next.ReviewCount &&
		stored.RepetitionCount == next.RepetitionCount &&
		stored.IntervalDays == next.IntervalDays
}

func (s *serviceImpl) lookupCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.CardRef, error) {
	var card *domain.CardRef
	err := store.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		card, err = s.content.Card(ctx, cardID)
		return err
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewReviewCardError("card does not exist", ErrCardNotFound)
		}
		return nil, s.storeError("failed to look up card", err)
	}
	if card == nil {
		return nil, NewReviewCardError("card does not exist", ErrCardNotFound)
	}

	var accessible bool
	err = store.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		accessible, err = s.content.IsCardAccessible(ctx, userID, cardID)
		return err
	})
	if err != nil {
		return nil, s.storeError("failed to check card access", err)
	}
	if !accessible {
		return nil, NewReviewCardError("user may not review this card", ErrForbidden)
	}
	return card, nil
}

func (s *serviceImpl) storeError(message string, err error) error {
	if store.IsUnavailableError(err) {
		return NewReviewCardError(message, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
	return NewReviewCardError(message, err)
}

// emitRecorded publishes the review. Handler failures are logged; the
// review itself is already durable.
func (s *serviceImpl) emitRecorded(ctx context.Context, log *slog.Logger, state *domain.ReviewState, now time.Time) {
	if s.emitter == nil {
		return
	}
	event, err := events.NewReviewRecordedEvent(events.ReviewRecorded{
		UserID:   state.UserID,
		CardID:   state.CardID,
		ModuleID: state.ModuleID,
		Status:   string(state.Status),
		DueAt:    state.DueAt,
		Version:  state.Version,
	}, now)
	if err != nil {
		log.Error("failed to build review event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("review event handler failed", slog.String("error", err.Error()))
	}
}
