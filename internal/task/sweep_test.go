package task_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/phrazzld/scry-srs/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepTime = time.Date(2026, 8, 3, 6, 0, 0, 0, time.UTC)

func newStates(t *testing.T) store.ReviewStateStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "sweep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewReviewStateStore(db, nil)
}

func seedDue(t *testing.T, states store.ReviewStateStore, userID uuid.UUID, cards, interval int) {
	t.Helper()
	for i := 0; i < cards; i++ {
		last := sweepTime.AddDate(0, 0, -interval).Add(-time.Hour)
		require.NoError(t, states.UpsertIfUnchanged(context.Background(), &domain.ReviewState{
			UserID:          userID,
			CardID:          uuid.New(),
			ModuleID:        uuid.New(),
			RepetitionCount: 2,
			EaseFactor:      2.5,
			IntervalDays:    interval,
			DueAt:           last.AddDate(0, 0, interval),
			LastReviewedAt:  &last,
			CreatedAt:       last,
			UpdatedAt:       last,
		}, 0))
	}
}

type recordingSink struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]task.Reminder
	failFor   map[uuid.UUID]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{reminders: map[uuid.UUID]task.Reminder{}, failFor: map[uuid.UUID]bool{}}
}

func (s *recordingSink) NotifyDue(_ context.Context, r task.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[r.UserID] {
		return errors.New("mailbox full")
	}
	s.reminders[r.UserID] = r
	return nil
}

func newSweep(states store.ReviewStateStore, sink task.ReminderSink, config task.SweepConfig) *task.DueSweep {
	resolver := due.NewResolver(states, due.Config{Classifier: srs.NewDefaultClassifier()}, nil)
	return task.NewDueSweep(states, resolver, sink, config, nil)
}

func TestDueSweep_NotifiesEveryDueUser(t *testing.T) {
	t.Parallel()
	states := newStates(t)

	var users []uuid.UUID
	for i := 0; i < 7; i++ {
		u := uuid.New()
		users = append(users, u)
		seedDue(t, states, u, i+1, 1)
	}
	mastered := uuid.New()
	seedDue(t, states, mastered, 3, 30)

	sink := newRecordingSink()
	report, err := newSweep(states, sink, task.SweepConfig{PageSize: 3, Concurrency: 2}).Run(context.Background(), sweepTime)
	require.NoError(t, err)

	assert.True(t, report.Completed)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 7, report.UsersScanned, "mastered-only users are not due")
	assert.Equal(t, 7, report.Notified)
	assert.Zero(t, report.Failed)

	require.Len(t, sink.reminders, 7)
	for i, u := range users {
		assert.Equal(t, i+1, sink.reminders[u].DueCount)
		assert.True(t, sink.reminders[u].AsOf.Equal(sweepTime))
	}
	assert.NotContains(t, sink.reminders, mastered)
}

func TestDueSweep_NothingDue(t *testing.T) {
	t.Parallel()
	states := newStates(t)
	seedDue(t, states, uuid.New(), 2, 1)

	report, err := newSweep(states, newRecordingSink(), task.SweepConfig{}).Run(context.Background(), sweepTime.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.True(t, report.Completed)
	assert.Zero(t, report.Pages)
	assert.Zero(t, report.UsersScanned)
}

func TestDueSweep_UserFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	states := newStates(t)

	var users []uuid.UUID
	for i := 0; i < 5; i++ {
		u := uuid.New()
		users = append(users, u)
		seedDue(t, states, u, 1, 1)
	}

	sink := newRecordingSink()
	sink.failFor[users[2]] = true

	report, err := newSweep(states, sink, task.SweepConfig{PageSize: 2, Concurrency: 3}).Run(context.Background(), sweepTime)
	require.NoError(t, err)
	assert.True(t, report.Completed)
	assert.Equal(t, 5, report.UsersScanned)
	assert.Equal(t, 4, report.Notified)
	assert.Equal(t, 1, report.Failed)
	assert.NotContains(t, sink.reminders, users[2])
}

type pageFailingStore struct {
	store.ReviewStateStore
	mu        sync.Mutex
	calls     int
	failAfter int
	failures  int
}

func (s *pageFailingStore) ListUsersWithDue(ctx context.Context, filter store.DueFilter, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls > s.failAfter && s.failures != 0
	if fail && s.failures > 0 {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, store.ErrStoreUnavailable
	}
	return s.ReviewStateStore.ListUsersWithDue(ctx, filter, after, limit)
}

func fastRetry() store.RetryPolicy {
	return store.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestDueSweep_RetriesFlakyPage(t *testing.T) {
	t.Parallel()
	states := newStates(t)
	for i := 0; i < 4; i++ {
		seedDue(t, states, uuid.New(), 1, 1)
	}

	flaky := &pageFailingStore{ReviewStateStore: states, failAfter: 1, failures: 2}
	report, err := newSweep(flaky, newRecordingSink(), task.SweepConfig{PageSize: 2, Concurrency: 1, Retry: fastRetry()}).
		Run(context.Background(), sweepTime)
	require.NoError(t, err)
	assert.True(t, report.Completed)
	assert.Equal(t, 4, report.Notified)
}

func TestDueSweep_StopsAtFailingPage(t *testing.T) {
	t.Parallel()
	states := newStates(t)
	var users []uuid.UUID
	for i := 0; i < 4; i++ {
		u := uuid.New()
		users = append(users, u)
		seedDue(t, states, u, 1, 1)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })

	broken := &pageFailingStore{ReviewStateStore: states, failAfter: 1, failures: -1}
	sink := newRecordingSink()
	report, err := newSweep(broken, sink, task.SweepConfig{PageSize: 2, Concurrency: 2, Retry: fastRetry()}).
		Run(context.Background(), sweepTime)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.False(t, report.Completed)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 2, report.Notified, "first page is still delivered")
	assert.Contains(t, sink.reminders, users[0])
	assert.Contains(t, sink.reminders, users[1])
}

func TestDueSweep_CancellationStopsDispatch(t *testing.T) {
	t.Parallel()
	states := newStates(t)
	for i := 0; i < 6; i++ {
		seedDue(t, states, uuid.New(), 1, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	delivered := 0
	sink := task.SinkFunc(func(context.Context, task.Reminder) error {
		mu.Lock()
		defer mu.Unlock()
		delivered++
		if delivered == 1 {
			cancel()
		}
		return nil
	})

	report, err := newSweep(states, sink, task.SweepConfig{PageSize: 10, Concurrency: 1}).Run(ctx, sweepTime)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, report.Completed)
	assert.Less(t, report.UsersScanned, 6)
	assert.LessOrEqual(t, report.Notified+report.Failed, report.UsersScanned)
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	log, buf := logger.NewTestLogger()
	sink := task.NewLogSink(log)

	userID := uuid.New()
	require.NoError(t, sink.NotifyDue(context.Background(), task.Reminder{UserID: userID, DueCount: 4, AsOf: sweepTime}))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cards due for review", entries[0]["msg"])
	assert.Equal(t, userID.String(), entries[0]["user_id"])
	assert.EqualValues(t, 4, entries[0]["due_count"])
}
