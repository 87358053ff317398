package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/store"
)

const reviewStateColumns = `user_id, card_id, module_id, repetition_count, ease_factor, interval_days,
	due_at, last_reviewed_at, lapse_count, review_count, version, created_at, updated_at`

// ReviewStateStore implements store.ReviewStateStore on SQLite.
type ReviewStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewReviewStateStore creates a SQLite review state store. If logger is nil,
// a default logger will be used.
func NewReviewStateStore(db store.DBTX, logger *slog.Logger) *ReviewStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_state_store")),
	}
}

var _ store.ReviewStateStore = (*ReviewStateStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewState(row rowScanner) (*domain.ReviewState, error) {
	var state domain.ReviewState
	var dueAt, createdAt, updatedAt int64
	var lastReviewed sql.NullInt64
	err := row.Scan(
		&state.UserID,
		&state.CardID,
		&state.ModuleID,
		&state.RepetitionCount,
		&state.EaseFactor,
		&state.IntervalDays,
		&dueAt,
		&lastReviewed,
		&state.LapseCount,
		&state.ReviewCount,
		&state.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.DueAt = fromMicros(dueAt)
	state.CreatedAt = fromMicros(createdAt)
	state.UpdatedAt = fromMicros(updatedAt)
	if lastReviewed.Valid {
		t := fromMicros(lastReviewed.Int64)
		state.LastReviewedAt = &t
	}
	return &state, nil
}

func (s *ReviewStateStore) queryStates(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.ReviewState, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("review_state", operation, "query failed", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var states []*domain.ReviewState
	for rows.Next() {
		state, err := scanReviewState(rows)
		if err != nil {
			return nil, store.NewStoreError("review_state", operation, "scan failed", mapError(err))
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_state", operation, "row iteration failed", mapError(err))
	}
	return states, nil
}

// Get returns store.ErrReviewStateNotFound if the user has never reviewed the card.
func (s *ReviewStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	state, err := scanReviewState(s.db.QueryRowContext(ctx,
		`SELECT `+reviewStateColumns+` FROM review_states WHERE user_id = ? AND card_id = ?`,
		userID, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewStateNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get review state",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, store.NewStoreError("review_state", "get", "query failed", mapError(err))
	}
	return state, nil
}

// UpsertIfUnchanged inserts when expectedVersion is zero and otherwise
// updates only while the stored version matches. Returns store.ErrConflict
// when nothing was written.
func (s *ReviewStateStore) UpsertIfUnchanged(
	ctx context.Context,
	state *domain.ReviewState,
	expectedVersion int64,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(store.MinimumEaseFactor); err != nil {
		log.Warn("review state validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	newVersion := expectedVersion + 1
	var lastReviewed sql.NullInt64
	if state.LastReviewedAt != nil {
		lastReviewed = sql.NullInt64{Int64: toMicros(*state.LastReviewedAt), Valid: true}
	}

	var (
		result sql.Result
		err    error
	)
	if expectedVersion == 0 {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO review_states (`+reviewStateColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, card_id) DO NOTHING`,
			state.UserID,
			state.CardID,
			state.ModuleID,
			state.RepetitionCount,
			state.EaseFactor,
			state.IntervalDays,
			toMicros(state.DueAt),
			lastReviewed,
			state.LapseCount,
			state.ReviewCount,
			newVersion,
			toMicros(state.CreatedAt),
			toMicros(state.UpdatedAt),
		)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE review_states
			SET module_id = ?,
				repetition_count = ?,
				ease_factor = ?,
				interval_days = ?,
				due_at = ?,
				last_reviewed_at = ?,
				lapse_count = ?,
				review_count = ?,
				version = ?,
				updated_at = ?
			WHERE user_id = ? AND card_id = ? AND version = ?`,
			state.ModuleID,
			state.RepetitionCount,
			state.EaseFactor,
			state.IntervalDays,
			toMicros(state.DueAt),
			lastReviewed,
			state.LapseCount,
			state.ReviewCount,
			newVersion,
			toMicros(state.UpdatedAt),
			state.UserID,
			state.CardID,
			expectedVersion,
		)
	}
	if err != nil {
		log.Error("failed to upsert review state",
			slog.String("error", err.Error()),
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()),
			slog.Int64("expected_version", expectedVersion))
		return store.NewStoreError("review_state", "upsert", "write failed", mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("review_state", "upsert", "rows affected unavailable", mapError(err))
	}
	if affected == 0 {
		log.Debug("review state version precondition failed",
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()),
			slog.Int64("expected_version", expectedVersion))
		return fmt.Errorf("%w: review state version precondition failed", store.ErrConflict)
	}

	state.Version = newVersion
	return nil
}

func dueClause(filter store.DueFilter) (string, []any) {
	where := "due_at <= ?"
	args := []any{toMicros(filter.AsOf)}
	if filter.MasteredIntervalDays > 0 {
		where += " AND interval_days < ?"
		args = append(args, filter.MasteredIntervalDays)
	}
	return where, args
}

// QueryDue returns due states ordered by due date and card ID.
func (s *ReviewStateStore) QueryDue(
	ctx context.Context,
	userID uuid.UUID,
	filter store.DueFilter,
	page store.Page,
) ([]*domain.ReviewState, error) {
	page = page.Normalize()

	where, dueArgs := dueClause(filter)
	query := `SELECT ` + reviewStateColumns + ` FROM review_states WHERE user_id = ? AND ` + where
	args := append([]any{userID}, dueArgs...)
	if page.After != nil {
		after := toMicros(page.After.DueAt)
		query += ` AND (due_at > ? OR (due_at = ? AND card_id > ?))`
		args = append(args, after, after, page.After.CardID)
	}
	query += ` ORDER BY due_at ASC, card_id ASC LIMIT ?`
	args = append(args, page.Limit)

	states, err := s.queryStates(ctx, "query_due", query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query due review states",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	return states, nil
}

// CountDue counts due states for a user.
func (s *ReviewStateStore) CountDue(ctx context.Context, userID uuid.UUID, filter store.DueFilter) (int, error) {
	where, dueArgs := dueClause(filter)
	args := append([]any{userID}, dueArgs...)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_states WHERE user_id = ? AND `+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, store.NewStoreError("review_state", "count_due", "query failed", mapError(err))
	}
	return count, nil
}

// QueryByModule returns every state the user has in a module.
func (s *ReviewStateStore) QueryByModule(ctx context.Context, userID, moduleID uuid.UUID) ([]*domain.ReviewState, error) {
	return s.queryStates(ctx, "query_by_module",
		`SELECT `+reviewStateColumns+` FROM review_states WHERE user_id = ? AND module_id = ? ORDER BY card_id`,
		userID, moduleID)
}

// QueryByUser returns every state the user has.
func (s *ReviewStateStore) QueryByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReviewState, error) {
	return s.queryStates(ctx, "query_by_user",
		`SELECT `+reviewStateColumns+` FROM review_states WHERE user_id = ? ORDER BY card_id`,
		userID)
}

// ListUsersWithDue pages through users that have due states, in ID order.
func (s *ReviewStateStore) ListUsersWithDue(
	ctx context.Context,
	filter store.DueFilter,
	after uuid.UUID,
	limit int,
) ([]uuid.UUID, error) {
	limit = store.Page{Limit: limit}.Normalize().Limit

	where, args := dueClause(filter)
	args = append(args, after, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM review_states WHERE `+where+` AND user_id > ? ORDER BY user_id LIMIT ?`,
		args...)
	if err != nil {
		return nil, store.NewStoreError("review_state", "list_users_with_due", "query failed", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("review_state", "list_users_with_due", "scan failed", mapError(err))
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_state", "list_users_with_due", "row iteration failed", mapError(err))
	}
	return users, nil
}
