package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/store"
)

// ContentGateway reads card ownership and enrollment from the local
// content tables.
type ContentGateway struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewContentGateway creates a gateway over the flashcards, modules and
// enrollments tables. If logger is nil, a default logger will be used.
func NewContentGateway(db store.DBTX, logger *slog.Logger) *ContentGateway {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentGateway{
		db:     db,
		logger: logger.With(slog.String("component", "content_gateway")),
	}
}

// Card returns store.ErrCardNotFound if no such card exists.
func (g *ContentGateway) Card(ctx context.Context, cardID uuid.UUID) (*domain.CardRef, error) {
	var card domain.CardRef
	err := g.db.QueryRowContext(ctx,
		`SELECT id, module_id FROM flashcards WHERE id = ?`, cardID,
	).Scan(&card.ID, &card.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCardNotFound
		}
		return nil, store.NewStoreError("card", "get", "query failed", mapError(err))
	}
	if err := card.Validate(); err != nil {
		return nil, store.NewStoreError("card", "get", "incomplete card row", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}
	return &card, nil
}

// IsCardAccessible reports whether the user is enrolled in the card's module.
func (g *ContentGateway) IsCardAccessible(ctx context.Context, userID, cardID uuid.UUID) (bool, error) {
	var ok bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM flashcards f
			JOIN enrollments e ON e.module_id = f.module_id
			WHERE f.id = ? AND e.user_id = ?
		)`, cardID, userID,
	).Scan(&ok)
	if err != nil {
		return false, store.NewStoreError("enrollment", "check_access", "query failed", mapError(err))
	}
	return ok, nil
}

// ModuleCardCount returns store.ErrModuleNotFound if the module does not exist.
func (g *ContentGateway) ModuleCardCount(ctx context.Context, moduleID uuid.UUID) (int, error) {
	var (
		count  int
		exists bool
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM flashcards WHERE module_id = ?1),
			EXISTS (SELECT 1 FROM modules WHERE id = ?1)`, moduleID,
	).Scan(&count, &exists)
	if err != nil {
		return 0, store.NewStoreError("module", "count_cards", "query failed", mapError(err))
	}
	if !exists {
		return 0, store.ErrModuleNotFound
	}
	return count, nil
}

// SeedModule inserts a module and its cards. It is used by the local
// development mode and tests; the engine itself never writes content.
func SeedModule(ctx context.Context, db store.DBTX, moduleID uuid.UUID, title string, cardIDs []uuid.UUID) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO modules (id, title) VALUES (?, ?)`, moduleID, title); err != nil {
		return mapError(err)
	}
	for _, cardID := range cardIDs {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO flashcards (id, module_id, term, definition) VALUES (?, ?, '', '')`,
			cardID, moduleID); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// SeedEnrollment enrolls a user in a module.
func SeedEnrollment(ctx context.Context, db store.DBTX, userID, moduleID uuid.UUID) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO enrollments (user_id, module_id) VALUES (?, ?)`, userID, moduleID)
	return mapError(err)
}
