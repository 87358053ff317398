//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/ciutil"
	"github.com/phrazzld/scry-srs/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

var migrateOnce sync.Once

// GetTestDBWithT returns a migrated database connection for testing.
// Without a configured URL the test is skipped, except under CI where a
// missing database is a failure.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := ciutil.TestDatabaseURL(nil)
	if dbURL == "" {
		if ciutil.IsCI() {
			t.Fatalf("%s must be set in CI", ciutil.EnvScryTestDBURL)
		}
		t.Skipf("%s not set - skipping integration test", ciutil.EnvScryTestDBURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	db, err := postgres.Open(ctx, dbURL)
	require.NoError(t, err, "Failed to open database connection")

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = postgres.RunMigrations(context.Background(), db, "up", nil)
	})
	require.NoError(t, migrateErr, "Failed to run migrations")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	return db
}

// WithTx executes a test function within a transaction, automatically rolling back
// after the test completes. This ensures test isolation and prevents side effects.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		// sql.ErrTxDone is expected if tx is already committed or rolled back
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// MustInsertModule inserts a module with the given number of cards and
// returns the module ID and card IDs.
func MustInsertModule(ctx context.Context, t *testing.T, tx *sql.Tx, cards int) (uuid.UUID, []uuid.UUID) {
	t.Helper()

	moduleID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO modules (id, title) VALUES ($1, $2)`, moduleID, "module "+moduleID.String()[:8])
	require.NoError(t, err, "Failed to insert module")

	cardIDs := make([]uuid.UUID, 0, cards)
	for i := 0; i < cards; i++ {
		cardID := uuid.New()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO flashcards (id, module_id, term, definition) VALUES ($1, $2, $3, $4)`,
			cardID, moduleID, "term", "definition")
		require.NoError(t, err, "Failed to insert flashcard")
		cardIDs = append(cardIDs, cardID)
	}
	return moduleID, cardIDs
}

// MustEnroll enrolls a user in a module.
func MustEnroll(ctx context.Context, t *testing.T, tx *sql.Tx, userID, moduleID uuid.UUID) {
	t.Helper()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (user_id, module_id) VALUES ($1, $2)`, userID, moduleID)
	require.NoError(t, err, "Failed to insert enrollment")
}
