package due_test

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, states store.ReviewStateStore, userID uuid.UUID, reviewedAt time.Time, reps, interval int) uuid.UUID {
	t.Helper()
	last := reviewedAt
	id := uuid.New()
	require.NoError(t, states.UpsertIfUnchanged(context.Background(), &domain.ReviewState{
		UserID:          userID,
		CardID:          id,
		ModuleID:        uuid.New(),
		RepetitionCount: reps,
		EaseFactor:      2.5,
		IntervalDays:    interval,
		DueAt:           reviewedAt.AddDate(0, 0, interval),
		LastReviewedAt:  &last,
		CreatedAt:       reviewedAt,
		UpdatedAt:       reviewedAt,
	}, 0))
	return id
}

func newStore(t *testing.T) store.ReviewStateStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "due.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewReviewStateStore(db, nil)
}

func TestParseMasteredPolicy(t *testing.T) {
	t.Parallel()

	p, err := due.ParseMasteredPolicy("")
	require.NoError(t, err)
	assert.Equal(t, due.MasteredExclude, p)

	p, err = due.ParseMasteredPolicy("include")
	require.NoError(t, err)
	assert.Equal(t, due.MasteredInclude, p)

	_, err = due.ParseMasteredPolicy("sometimes")
	assert.Error(t, err)
}

func TestResolver_DueCountRespectsPolicy(t *testing.T) {
	t.Parallel()
	states := newStore(t)
	userID := uuid.New()

	seed(t, states, userID, baseTime, 1, 1)
	seed(t, states, userID, baseTime, 3, 15)
	seed(t, states, userID, baseTime, 6, 30)
	seed(t, states, uuid.New(), baseTime, 1, 1)

	asOf := baseTime.AddDate(0, 0, 60)

	exclude := due.NewResolver(states, due.Config{Classifier: srs.NewDefaultClassifier()}, nil)
	count, err := exclude.DueCount(context.Background(), userID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	include := due.NewResolver(states, due.Config{
		MasteredPolicy: due.MasteredInclude,
		Classifier:     srs.NewDefaultClassifier(),
	}, nil)
	count, err = include.DueCount(context.Background(), userID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = exclude.DueCount(context.Background(), userID, baseTime)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResolver_DueCardsPagesInOrder(t *testing.T) {
	t.Parallel()
	states := newStore(t)
	userID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, seed(t, states, userID, baseTime, 1, 1))
	}
	earliest := seed(t, states, userID, baseTime.Add(-time.Hour), 1, 1)
	latest := seed(t, states, userID, baseTime, 3, 10)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	resolver := due.NewResolver(states, due.Config{Classifier: srs.NewDefaultClassifier()}, nil)
	asOf := baseTime.AddDate(0, 0, 30)

	var got []*domain.ReviewState
	page := store.Page{Limit: 4}
	pages := 0
	for {
		result, err := resolver.DueCards(context.Background(), userID, asOf, page)
		require.NoError(t, err)
		pages++
		got = append(got, result.Cards...)
		if result.Next == nil {
			break
		}
		page.After = result.Next
	}

	assert.Equal(t, 2, pages)
	require.Len(t, got, 6)
	assert.Equal(t, earliest, got[0].CardID)
	for i, id := range ids {
		assert.Equal(t, id, got[i+1].CardID)
	}
	assert.Equal(t, latest, got[5].CardID)
	assert.Equal(t, domain.MasteryLearning, got[0].Status)
	assert.Equal(t, domain.MasteryReview, got[5].Status)
}

func TestResolver_EmptyPage(t *testing.T) {
	t.Parallel()
	resolver := due.NewResolver(newStore(t), due.Config{Classifier: srs.NewDefaultClassifier()}, nil)

	result, err := resolver.DueCards(context.Background(), uuid.New(), baseTime, store.Page{})
	require.NoError(t, err)
	assert.NotNil(t, result.Cards)
	assert.Empty(t, result.Cards)
	assert.Nil(t, result.Next)
}

func TestResolver_ExactPageHasNoNext(t *testing.T) {
	t.Parallel()
	states := newStore(t)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		seed(t, states, userID, baseTime, 1, 1)
	}

	resolver := due.NewResolver(states, due.Config{Classifier: srs.NewDefaultClassifier()}, nil)
	result, err := resolver.DueCards(context.Background(), userID, baseTime.AddDate(0, 0, 1), store.Page{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, result.Cards, 3)
	assert.Nil(t, result.Next)
}

func TestResolver_ClampsPageSize(t *testing.T) {
	t.Parallel()
	states := newStore(t)
	userID := uuid.New()
	for i := 0; i < due.MaxPageSize+5; i++ {
		seed(t, states, userID, baseTime, 1, 1)
	}

	resolver := due.NewResolver(states, due.Config{Classifier: srs.NewDefaultClassifier()}, nil)
	result, err := resolver.DueCards(context.Background(), userID, baseTime.AddDate(0, 0, 1), store.Page{Limit: 10000})
	require.NoError(t, err)
	assert.Len(t, result.Cards, due.MaxPageSize)
	assert.NotNil(t, result.Next)
}

type flakyStore struct {
	store.ReviewStateStore
	failures int
	calls    int
}

func (f *flakyStore) CountDue(ctx context.Context, userID uuid.UUID, filter store.DueFilter) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, store.ErrStoreUnavailable
	}
	return f.ReviewStateStore.CountDue(ctx, userID, filter)
}

func TestResolver_RetriesUnavailableStore(t *testing.T) {
	t.Parallel()
	states := newStore(t)
	userID := uuid.New()
	seed(t, states, userID, baseTime, 1, 1)

	retry := store.RetryPolicy{MaxRetries: 2, BaseDelay: time.Microsecond}

	flaky := &flakyStore{ReviewStateStore: states, failures: 2}
	resolver := due.NewResolver(flaky, due.Config{Classifier: srs.NewDefaultClassifier(), Retry: retry}, nil)
	count, err := resolver.DueCount(context.Background(), userID, baseTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 3, flaky.calls)

	down := &flakyStore{ReviewStateStore: states, failures: 10}
	resolver = due.NewResolver(down, due.Config{Classifier: srs.NewDefaultClassifier(), Retry: retry}, nil)
	_, err = resolver.DueCount(context.Background(), userID, baseTime)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.Equal(t, 3, down.calls)
}
