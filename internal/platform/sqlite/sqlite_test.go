package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 9, 30, 0, 123456000, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "scry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func reviewedState(userID, cardID, moduleID uuid.UUID, reviewedAt time.Time, interval int) *domain.ReviewState {
	last := reviewedAt
	return &domain.ReviewState{
		UserID:          userID,
		CardID:          cardID,
		ModuleID:        moduleID,
		RepetitionCount: 1,
		EaseFactor:      2.5,
		IntervalDays:    interval,
		DueAt:           reviewedAt.AddDate(0, 0, interval),
		LastReviewedAt:  &last,
		ReviewCount:     1,
		CreatedAt:       reviewedAt,
		UpdatedAt:       reviewedAt,
	}
}
