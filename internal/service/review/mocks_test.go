package review_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/events"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/stretchr/testify/mock"
)

type mockContent struct {
	mock.Mock
}

func (m *mockContent) Card(ctx context.Context, cardID uuid.UUID) (*domain.CardRef, error) {
	args := m.Called(ctx, cardID)
	card, _ := args.Get(0).(*domain.CardRef)
	return card, args.Error(1)
}

func (m *mockContent) IsCardAccessible(ctx context.Context, userID, cardID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, cardID)
	return args.Bool(0), args.Error(1)
}

type mockStateStore struct {
	mock.Mock
}

var _ store.ReviewStateStore = (*mockStateStore)(nil)

func (m *mockStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	args := m.Called(ctx, userID, cardID)
	state, _ := args.Get(0).(*domain.ReviewState)
	return state, args.Error(1)
}

func (m *mockStateStore) UpsertIfUnchanged(ctx context.Context, state *domain.ReviewState, expectedVersion int64) error {
	args := m.Called(ctx, state, expectedVersion)
	if args.Error(0) == nil {
		state.Version = expectedVersion + 1
	}
	return args.Error(0)
}

func (m *mockStateStore) QueryDue(
	ctx context.Context,
	userID uuid.UUID,
	filter store.DueFilter,
	page store.Page,
) ([]*domain.ReviewState, error) {
	args := m.Called(ctx, userID, filter, page)
	states, _ := args.Get(0).([]*domain.ReviewState)
	return states, args.Error(1)
}

func (m *mockStateStore) CountDue(ctx context.Context, userID uuid.UUID, filter store.DueFilter) (int, error) {
	args := m.Called(ctx, userID, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockStateStore) QueryByModule(ctx context.Context, userID, moduleID uuid.UUID) ([]*domain.ReviewState, error) {
	args := m.Called(ctx, userID, moduleID)
	states, _ := args.Get(0).([]*domain.ReviewState)
	return states, args.Error(1)
}

func (m *mockStateStore) QueryByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReviewState, error) {
	args := m.Called(ctx, userID)
	states, _ := args.Get(0).([]*domain.ReviewState)
	return states, args.Error(1)
}

func (m *mockStateStore) ListUsersWithDue(
	ctx context.Context,
	filter store.DueFilter,
	after uuid.UUID,
	limit int,
) ([]uuid.UUID, error) {
	args := m.Called(ctx, filter, after, limit)
	users, _ := args.Get(0).([]uuid.UUID)
	return users, args.Error(1)
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (e *capturingEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}
