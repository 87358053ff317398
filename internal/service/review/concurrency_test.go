package review_test

import (
	"context"
	"path/filepath"
	"sync"
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

// barrierStore holds every Get until two readers have arrived, so both
// reviews start from the same snapshot.
type barrierStore struct {
	store.ReviewStateStore
	arrived sync.WaitGroup
}

func (b *barrierStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	state, err := b.ReviewStateStore.Get(ctx, userID, cardID)
	b.arrived.Done()
	b.arrived.Wait()
	return state, err
}

func TestReviewCard_ConcurrentReviewsOfSamePair(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userID, moduleID, cardID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, sqlite.SeedModule(ctx, db, moduleID, "Greetings", []uuid.UUID{cardID}))
	require.NoError(t, sqlite.SeedEnrollment(ctx, db, userID, moduleID))

	states := sqlite.NewReviewStateStore(db, nil)
	newService := func(s store.ReviewStateStore) review.Service {
		return review.NewService(
			sqlite.NewContentGateway(db, nil),
			s,
			srs.NewDefaultService(),
			srs.NewDefaultClassifier(),
			nil,
			store.RetryPolicy{},
			nil,
		)
	}

	for _, start := range []string{"first review", "existing state"} {
		t.Run(start, func(t *testing.T) {
			racing := &barrierStore{ReviewStateStore: states}
			racing.arrived.Add(2)
			service := newService(racing)

			before, _ := states.Get(ctx, userID, cardID)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = service.ReviewCard(ctx, userID, cardID, 4, time.Now())
				}(i)
			}
			wg.Wait()

			var wins, conflicts int
			for _, err := range errs {
				switch {
				case err == nil:
					wins++
				case assert.ErrorIs(t, err, review.ErrConflict):
					conflicts++
				}
			}
			assert.Equal(t, 1, wins)
			assert.Equal(t, 1, conflicts)

			after, err := states.Get(ctx, userID, cardID)
			require.NoError(t, err)
			var beforeVersion int64
			if before != nil {
				beforeVersion = before.Version
			}
			assert.Equal(t, beforeVersion+1, after.Version, "exactly one write landed")
		})
	}
}

func TestReviewCard_DueCountAfterFirstReview(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "due.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userID, moduleID, cardID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, sqlite.SeedModule(ctx, db, moduleID, "Numbers", []uuid.UUID{cardID}))
	require.NoError(t, sqlite.SeedEnrollment(ctx, db, userID, moduleID))

	states := sqlite.NewReviewStateStore(db, nil)
	service := review.NewService(sqlite.NewContentGateway(db, nil), states, srs.NewDefaultService(),
		srs.NewDefaultClassifier(), nil, store.DefaultRetryPolicy(), nil)

	now := review.NormalizeTime(time.Now())
	_, err = service.ReviewCard(ctx, userID, cardID, 4, now)
	require.NoError(t, err)

	count, err := states.CountDue(ctx, userID, store.DueFilter{AsOf: now})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = states.CountDue(ctx, userID, store.DueFilter{AsOf: now.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
