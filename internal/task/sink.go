package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
)

// Reminder tells a learner how many cards are waiting.
type Reminder struct {
	UserID   uuid.UUID `json:"user_id"`
	DueCount int       `json:"due_count"`
	AsOf     time.Time `json:"as_of"`
}

// ReminderSink delivers reminders to an external channel (mail, push, queue).
type ReminderSink interface {
	NotifyDue(ctx context.Context, reminder Reminder) error
}

// SinkFunc adapts a function to ReminderSink.
type SinkFunc func(ctx context.Context, reminder Reminder) error

// NotifyDue calls f.
func (f SinkFunc) NotifyDue(ctx context.Context, reminder Reminder) error {
	return f(ctx, reminder)
}

// LogSink writes each reminder to the log. It is the default sink when no
// delivery channel is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. If logger is nil, a default logger will be used.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With(slog.String("component", "reminder_log_sink"))}
}

// NotifyDue logs the reminder and never fails.
func (s *LogSink) NotifyDue(ctx context.Context, reminder Reminder) error {
	logger.FromContextOrDefault(ctx, s.logger).Info("cards due for review",
		slog.String("user_id", reminder.UserID.String()),
		slog.Int("due_count", reminder.DueCount),
		slog.Time("as_of", reminder.AsOf))
	return nil
}
