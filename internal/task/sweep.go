package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/store"
	"golang.org/x/sync/errgroup"
)

// SweepConfig holds the sweep's tunables.
type SweepConfig struct {
	// PageSize is how many users are read per page. Defaults to 200.
	PageSize int
	// Concurrency bounds the users processed at once. Defaults to 8.
	Concurrency int
	// Retry is applied to each page read.
	Retry store.RetryPolicy
}

// DefaultSweepConfig returns a SweepConfig with reasonable defaults.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		PageSize:    200,
		Concurrency: 8,
		Retry:       store.DefaultRetryPolicy(),
	}
}

// SweepReport summarizes one sweep. Completed is false when the sweep stopped
// early because of cancellation or a page that kept failing.
type SweepReport struct {
	AsOf         time.Time     `json:"as_of"`
	Pages        int           `json:"pages"`
	UsersScanned int           `json:"users_scanned"`
	Notified     int           `json:"notified"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	Completed    bool          `json:"completed"`
	Duration     time.Duration `json:"duration"`
}

// DueSweep finds every user with due cards and sends each one a Reminder.
type DueSweep struct {
	states   store.ReviewStateStore
	resolver *due.Resolver
	sink     ReminderSink
	config   SweepConfig
	logger   *slog.Logger
}

// NewDueSweep creates a DueSweep. Non-positive config values fall back to
// DefaultSweepConfig. If logger is nil, a default logger will be used.
func NewDueSweep(
	states store.ReviewStateStore,
	resolver *due.Resolver,
	sink ReminderSink,
	config SweepConfig,
	logger *slog.Logger,
) *DueSweep {
	if states == nil {
		panic("states cannot be nil")
	}
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if sink == nil {
		panic("sink cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSweepConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.PageSize > store.MaxPageLimit {
		config.PageSize = store.MaxPageLimit
	}
	if config.Concurrency <= 0 {
		logger.Warn("invalid sweep concurrency specified, using default",
			slog.Int("specified", config.Concurrency),
			slog.Int("default", defaults.Concurrency))
		config.Concurrency = defaults.Concurrency
	}
	return &DueSweep{
		states:   states,
		resolver: resolver,
		sink:     sink,
		config:   config,
		logger:   logger.With(slog.String("component", "due_sweep")),
	}
}

// Run sweeps every user with cards due at or before asOf. A failure for one
// user is logged and counted. A page read that still fails after retries
// stops the sweep and is returned together with the partial report.
// Cancelling ctx stops dispatch; users already started are waited for.
func (s *DueSweep) Run(ctx context.Context, asOf time.Time) (*SweepReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	started := time.Now()
	asOf = asOf.UTC()
	filter := s.resolver.Filter(asOf)

	report := &SweepReport{AsOf: asOf}
	var notified, skipped, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)

	var runErr error
	after := uuid.Nil
pages:
	for {
		var users []uuid.UUID
		err := store.WithRetry(ctx, s.config.Retry, func(ctx context.Context) error {
			var err error
			users, err = s.states.ListUsersWithDue(ctx, filter, after, s.config.PageSize)
			return err
		})
		if err != nil {
			log.Error("failed to read users with due cards",
				slog.String("error", err.Error()),
				slog.Int("page", report.Pages+1),
				slog.String("after", after.String()))
			runErr = fmt.Errorf("failed to read sweep page %d: %w", report.Pages+1, err)
			break
		}
		if len(users) == 0 {
			report.Completed = true
			break
		}
		report.Pages++

		for _, userID := range users {
			if err := ctx.Err(); err != nil {
				runErr = err
				break pages
			}
			report.UsersScanned++
			userID := userID
			g.Go(func() error {
				sent, err := s.remind(ctx, userID, asOf)
				switch {
				case err != nil:
					failed.Add(1)
					log.Error("failed to send reminder",
						slog.String("error", err.Error()),
						slog.String("user_id", userID.String()))
				case sent:
					notified.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}

		if len(users) < s.config.PageSize {
			report.Completed = true
			break
		}
		after = users[len(users)-1]
	}

	_ = g.Wait()
	report.Notified = int(notified.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(started)

	log.Info("due sweep finished",
		slog.Time("as_of", asOf),
		slog.Int("pages", report.Pages),
		slog.Int("users_scanned", report.UsersScanned),
		slog.Int("notified", report.Notified),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Bool("completed", report.Completed),
		slog.Duration("duration", report.Duration))

	return report, runErr
}

// remind counts the user's due cards and notifies the sink. It reports
// false when nothing was due by the time the user was reached.
func (s *DueSweep) remind(ctx context.Context, userID uuid.UUID, asOf time.Time) (bool, error) {
	count, err := s.resolver.DueCount(ctx, userID, asOf)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	if err := s.sink.NotifyDue(ctx, Reminder{UserID: userID, DueCount: count, AsOf: asOf}); err != nil {
		return false, fmt.Errorf("failed to notify user: %w", err)
	}
	return true, nil
}
