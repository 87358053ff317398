package review_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/phrazzld/scry-srs/internal/service/review"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sqliteEnv struct {
	userID  uuid.UUID
	cardID  uuid.UUID
	states  store.ReviewStateStore
	content review.ContentGateway
}

func newSQLiteEnv(t *testing.T) *sqliteEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &sqliteEnv{userID: uuid.New(), cardID: uuid.New()}
	moduleID := uuid.New()
	require.NoError(t, sqlite.SeedModule(ctx, db, moduleID, "Colours", []uuid.UUID{env.cardID}))
	require.NoError(t, sqlite.SeedEnrollment(ctx, db, env.userID, moduleID))
	env.states = sqlite.NewReviewStateStore(db, nil)
	env.content = sqlite.NewContentGateway(db, nil)
	return env
}

func (e *sqliteEnv) service(states store.ReviewStateStore) review.Service {
	return review.NewService(e.content, states, srs.NewDefaultService(), srs.NewDefaultClassifier(),
		nil, store.RetryPolicy{MaxRetries: 3, BaseDelay: time.Microsecond}, nil)
}

// lostReplyStore commits the first write and then reports failure, as when
// the connection drops before the server's reply arrives.
type lostReplyStore struct {
	store.ReviewStateStore
	failWith error
	commit   bool
	writes   int
}

func (s *lostReplyStore) UpsertIfUnchanged(ctx context.Context, state *domain.ReviewState, expectedVersion int64) error {
	s.writes++
	if s.writes > 1 {
		return s.ReviewStateStore.UpsertIfUnchanged(ctx, state, expectedVersion)
	}
	if s.commit {
		committed := state.Clone()
		if err := s.ReviewStateStore.UpsertIfUnchanged(ctx, committed, expectedVersion); err != nil {
			return err
		}
	}
	return store.NewStoreError("review_state", "upsert", "write failed", s.failWith)
}

func TestReviewCard_CommittedWriteIsNotAppliedTwice(t *testing.T) {
	cases := []struct {
		name     string
		failWith error
	}{
		{name: "outcome unknown", failWith: store.ErrWriteOutcomeUnknown},
		{name: "reported unavailable then retried", failWith: store.ErrStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newSQLiteEnv(t)
			ctx := context.Background()
			flaky := &lostReplyStore{ReviewStateStore: env.states, failWith: tc.failWith, commit: true}
			service := env.service(flaky)

			state, err := service.ReviewCard(ctx, env.userID, env.cardID, 5, reviewTime)
			require.NoError(t, err)
			assert.Equal(t, int64(1), state.Version)

			stored, err := env.states.Get(ctx, env.userID, env.cardID)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.ReviewCount, "the rating was applied once")
			assert.Equal(t, 1, stored.RepetitionCount)
			assert.Equal(t, 1, stored.IntervalDays)
			assert.Equal(t, int64(1), stored.Version)

			// The HTTP layer's conflict retry must not reapply it either.
			err = review.RetryOnConflict(ctx, 3, func(ctx context.Context) error {
				_, err := env.service(env.states).ReviewCard(ctx, env.userID, env.cardID, 5, reviewTime.Add(time.Hour))
				return err
			})
			require.NoError(t, err)
			stored, err = env.states.Get(ctx, env.userID, env.cardID)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.ReviewCount)
		})
	}
}

func TestReviewCard_UnconfirmedWriteIsReported(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	flaky := &lostReplyStore{ReviewStateStore: env.states, failWith: store.ErrWriteOutcomeUnknown}

	_, err := env.service(flaky).ReviewCard(ctx, env.userID, env.cardID, 4, reviewTime)
	assert.ErrorIs(t, err, review.ErrStoreUnavailable)
	assert.Equal(t, 1, flaky.writes, "a write of unknown outcome is not retried")

	_, err = env.states.Get(ctx, env.userID, env.cardID)
	assert.ErrorIs(t, err, store.ErrReviewStateNotFound)
}

func TestReviewCard_PerfectStreakStaysValid(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	service := env.service(env.states)
	params := srs.NewDefaultParams()

	now := reviewTime
	for i := 1; i <= 40; i++ {
		returned, err := service.ReviewCard(ctx, env.userID, env.cardID, 5, now)
		require.NoError(t, err, "review %d", i)

		stored, err := env.states.Get(ctx, env.userID, env.cardID)
		require.NoError(t, err, "review %d", i)
		require.NoError(t, stored.Validate(params.MinEaseFactor), "review %d", i)
		assert.True(t, returned.DueAt.Equal(stored.DueAt), "review %d due date round-trips", i)
		assert.LessOrEqual(t, stored.IntervalDays, params.MaximumIntervalDays)

		now = now.Add(time.Minute)
	}

	count, err := env.states.CountDue(ctx, env.userID, store.DueFilter{AsOf: now})
	require.NoError(t, err)
	assert.Equal(t, 0, count, "a capped card is not due")
}
