package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event, err := NewEvent("noop", map[string]string{"key": "value"}, at)
		require.NoError(t, err)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		handler1, handler2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event, err := NewEvent("noop", nil, at)
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		require.Len(t, handler1.events, 1)
		require.Len(t, handler2.events, 1)
		assert.Same(t, event, handler1.events[0])
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failing := &recordingHandler{err: errors.New("handler error")}
		after := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(after)

		event, err := NewEvent("noop", nil, at)
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")
		assert.Len(t, after.events, 1)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		var got string
		emitter.RegisterHandler(HandlerFunc(func(ctx context.Context, event *Event) error {
			got = event.Type
			return nil
		}))

		event, err := NewEvent(TypeReviewRecorded, nil, at)
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, TypeReviewRecorded, got)
	})
}

func TestReviewRecordedPayload(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := ReviewRecorded{
		UserID:   uuid.New(),
		CardID:   uuid.New(),
		ModuleID: uuid.New(),
		Status:   "learning",
		DueAt:    at.AddDate(0, 0, 1),
		Version:  2,
	}

	event, err := NewReviewRecordedEvent(payload, at)
	require.NoError(t, err)
	assert.Equal(t, TypeReviewRecorded, event.Type)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.True(t, event.OccurredAt.Equal(at))

	var decoded ReviewRecorded
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload.UserID, decoded.UserID)
	assert.Equal(t, payload.Version, decoded.Version)
	assert.True(t, payload.DueAt.Equal(decoded.DueAt))

	_, err = NewEvent("bad", make(chan int), at)
	assert.Error(t, err)
}
