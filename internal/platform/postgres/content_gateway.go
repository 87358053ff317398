package postgres

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

// ContentGateway reads card ownership and enrollment from the content
// system's tables. It never writes.
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

// Card returns the engine's view of a flashcard.
// Returns store.ErrCardNotFound if no such card exists.
func (g *ContentGateway) Card(ctx context.Context, cardID uuid.UUID) (*domain.CardRef, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	var card domain.CardRef
	err := g.db.QueryRowContext(ctx,
		`SELECT id, module_id FROM flashcards WHERE id = $1`, cardID,
	).Scan(&card.ID, &card.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found", slog.String("card_id", cardID.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, store.NewStoreError("card", "get", "query failed", MapError(err))
	}
	if err := card.Validate(); err != nil {
		log.Error("card row is incomplete", slog.String("card_id", cardID.String()))
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
			WHERE f.id = $1 AND e.user_id = $2
		)`, cardID, userID,
	).Scan(&ok)
	if err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Error("failed to check card access",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return false, store.NewStoreError("enrollment", "check_access", "query failed", MapError(err))
	}
	return ok, nil
}

// ModuleCardCount returns the number of cards in a module.
// Returns store.ErrModuleNotFound if the module does not exist.
func (g *ContentGateway) ModuleCardCount(ctx context.Context, moduleID uuid.UUID) (int, error) {
	var (
		count  int
		exists bool
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM flashcards WHERE module_id = $1),
			EXISTS (SELECT 1 FROM modules WHERE id = $1)`, moduleID,
	).Scan(&count, &exists)
	if err != nil {
		return 0, store.NewStoreError("module", "count_cards", "query failed", MapError(err))
	}
	if !exists {
		return 0, store.ErrModuleNotFound
	}
	return count, nil
}
