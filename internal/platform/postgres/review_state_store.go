package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/store"
)

const reviewStateColumns = `user_id, card_id, module_id, repetition_count, ease_factor, interval_days,
		due_at, last_reviewed_at, lapse_count, review_count, version, created_at, updated_at`

// PostgresReviewStateStore implements the store.ReviewStateStore interface
// using a PostgreSQL database as the storage backend.
type PostgresReviewStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewStateStore creates a new PostgreSQL implementation of the ReviewStateStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresReviewStateStore(db store.DBTX, logger *slog.Logger) *PostgresReviewStateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_state_store")),
	}
}

// Ensure PostgresReviewStateStore implements store.ReviewStateStore interface
var _ store.ReviewStateStore = (*PostgresReviewStateStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewState(row rowScanner) (*domain.ReviewState, error) {
	var state domain.ReviewState
	var lastReviewed sql.NullTime

	err := row.Scan(
		&state.UserID,
		&state.CardID,
		&state.ModuleID,
		&state.RepetitionCount,
		&state.EaseFactor,
		&state.IntervalDays,
		&state.DueAt,
		&lastReviewed,
		&state.LapseCount,
		&state.ReviewCount,
		&state.Version,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.DueAt = state.DueAt.UTC()
	state.CreatedAt = state.CreatedAt.UTC()
	state.UpdatedAt = state.UpdatedAt.UTC()
	if lastReviewed.Valid {
		t := lastReviewed.Time.UTC()
		state.LastReviewedAt = &t
	}
	return &state, nil
}

func (s *PostgresReviewStateStore) queryStates(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.ReviewState, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("review_state", operation, "query failed", MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var states []*domain.ReviewState
	for rows.Next() {
		state, err := scanReviewState(rows)
		if err != nil {
			return nil, store.NewStoreError("review_state", operation, "scan failed", MapError(err))
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_state", operation, "row iteration failed", MapError(err))
	}
	return states, nil
}

// Get implements store.ReviewStateStore.Get
// Returns store.ErrReviewStateNotFound if the user has never reviewed the card.
func (s *PostgresReviewStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + reviewStateColumns + `
		FROM review_states
		WHERE user_id = $1 AND card_id = $2`

	state, err := scanReviewState(s.db.QueryRowContext(ctx, query, userID, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("review state not found",
				slog.String("user_id", userID.String()),
				slog.String("card_id", cardID.String()))
			return nil, store.ErrReviewStateNotFound
		}
		log.Error("failed to get review state",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, store.NewStoreError("review_state", "get", "query failed", MapError(err))
	}

	return state, nil
}

// UpsertIfUnchanged implements store.ReviewStateStore.UpsertIfUnchanged
// An expectedVersion of zero inserts the row and fails if one already exists;
// any other value updates the row only while its version still matches.
func (s *PostgresReviewStateStore) UpsertIfUnchanged(
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
	var lastReviewed any
	if state.LastReviewedAt != nil {
		lastReviewed = *state.LastReviewedAt
	}

	var (
		result sql.Result
		err    error
	)
	if expectedVersion == 0 {
		query := `
			INSERT INTO review_states (` + reviewStateColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (user_id, card_id) DO NOTHING
		`
		result, err = s.db.ExecContext(ctx, query,
			state.UserID,
			state.CardID,
			state.ModuleID,
			state.RepetitionCount,
			state.EaseFactor,
			state.IntervalDays,
			state.DueAt,
			lastReviewed,
			state.LapseCount,
			state.ReviewCount,
			newVersion,
			state.CreatedAt,
			state.UpdatedAt,
		)
	} else {
		query := `
			UPDATE review_states
			SET module_id = $3,
				repetition_count = $4,
				ease_factor = $5,
				interval_days = $6,
				due_at = $7,
				last_reviewed_at = $8,
				lapse_count = $9,
				review_count = $10,
				version = $11,
				updated_at = $12
			WHERE user_id = $1 AND card_id = $2 AND version = $13
		`
		result, err = s.db.ExecContext(ctx, query,
			state.UserID,
			state.CardID,
			state.ModuleID,
			state.RepetitionCount,
			state.EaseFactor,
			state.IntervalDays,
			state.DueAt,
			lastReviewed,
			state.LapseCount,
			state.ReviewCount,
			newVersion,
			state.UpdatedAt,
			expectedVersion,
		)
	}

	if err != nil {
		log.Error("failed to upsert review state",
			slog.String("error", err.Error()),
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()),
			slog.Int64("expected_version", expectedVersion))
		return store.NewStoreError("review_state", "upsert", "write failed", MapWriteError(err))
	}

	if err := CheckVersionApplied(result, "review state"); err != nil {
		log.Debug("review state version precondition failed",
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()),
			slog.Int64("expected_version", expectedVersion))
		return err
	}

	state.Version = newVersion

	log.Debug("review state upserted",
		slog.String("user_id", state.UserID.String()),
		slog.String("card_id", state.CardID.String()),
		slog.Int64("version", newVersion),
		slog.Time("due_at", state.DueAt))
	return nil
}

// dueClause builds the shared WHERE clause for due queries, appending its
// arguments to args. The first placeholder used is len(args)+1.
func dueClause(filter store.DueFilter, args []any) (string, []any) {
	var b strings.Builder
	args = append(args, filter.AsOf)
	fmt.Fprintf(&b, "due_at <= $%d", len(args))
	if filter.MasteredIntervalDays > 0 {
		args = append(args, filter.MasteredIntervalDays)
		fmt.Fprintf(&b, " AND interval_days < $%d", len(args))
	}
	return b.String(), args
}

// QueryDue implements store.ReviewStateStore.QueryDue
func (s *PostgresReviewStateStore) QueryDue(
	ctx context.Context,
	userID uuid.UUID,
	filter store.DueFilter,
	page store.Page,
) ([]*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()

	where, args := dueClause(filter, []any{userID})
	query := `SELECT ` + reviewStateColumns + ` FROM review_states WHERE user_id = $1 AND ` + where
	if page.After != nil {
		args = append(args, page.After.DueAt, page.After.CardID)
		query += fmt.Sprintf(" AND (due_at, card_id) > ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, page.Limit)
	query += fmt.Sprintf(" ORDER BY due_at ASC, card_id ASC LIMIT $%d", len(args))

	states, err := s.queryStates(ctx, "query_due", query, args...)
	if err != nil {
		log.Error("failed to query due review states",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}

	log.Debug("due review states retrieved",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(states)))
	return states, nil
}

// CountDue implements store.ReviewStateStore.CountDue
func (s *PostgresReviewStateStore) CountDue(
	ctx context.Context,
	userID uuid.UUID,
	filter store.DueFilter,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args := dueClause(filter, []any{userID})
	query := `SELECT COUNT(*) FROM review_states WHERE user_id = $1 AND ` + where

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.Error("failed to count due review states",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, store.NewStoreError("review_state", "count_due", "query failed", MapError(err))
	}
	return count, nil
}

// QueryByModule implements store.ReviewStateStore.QueryByModule
func (s *PostgresReviewStateStore) QueryByModule(
	ctx context.Context,
	userID, moduleID uuid.UUID,
) ([]*domain.ReviewState, error) {
	query := `SELECT ` + reviewStateColumns + `
		FROM review_states
		WHERE user_id = $1 AND module_id = $2
		ORDER BY card_id`
	return s.queryStates(ctx, "query_by_module", query, userID, moduleID)
}

// QueryByUser implements store.ReviewStateStore.QueryByUser
func (s *PostgresReviewStateStore) QueryByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReviewState, error) {
	query := `SELECT ` + reviewStateColumns + `
		FROM review_states
		WHERE user_id = $1
		ORDER BY card_id`
	return s.queryStates(ctx, "query_by_user", query, userID)
}

// ListUsersWithDue implements store.ReviewStateStore.ListUsersWithDue
func (s *PostgresReviewStateStore) ListUsersWithDue(
	ctx context.Context,
	filter store.DueFilter,
	after uuid.UUID,
	limit int,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	limit = store.Page{Limit: limit}.Normalize().Limit

	where, args := dueClause(filter, nil)
	args = append(args, after, limit)
	query := fmt.Sprintf(`SELECT DISTINCT user_id FROM review_states
		WHERE %s AND user_id > $%d
		ORDER BY user_id
		LIMIT $%d`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list users with due cards", slog.String("error", err.Error()))
		return nil, store.NewStoreError("review_state", "list_users_with_due", "query failed", MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("review_state", "list_users_with_due", "scan failed", MapError(err))
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_state", "list_users_with_due", "row iteration failed", MapError(err))
	}
	return users, nil
}
