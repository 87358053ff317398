package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

const defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS flashcards (
	id TEXT PRIMARY KEY,
	module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
	term TEXT NOT NULL,
	definition TEXT NOT NULL,
	example TEXT,
	audio_url TEXT,
	created_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_flashcards_module_id ON flashcards(module_id);

CREATE TABLE IF NOT EXISTS enrollments (
	user_id TEXT NOT NULL,
	module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, module_id)
);

CREATE TABLE IF NOT EXISTS review_states (
	user_id TEXT NOT NULL,
	card_id TEXT NOT NULL,
	module_id TEXT NOT NULL,
	repetition_count INTEGER NOT NULL CHECK (repetition_count >= 0),
	ease_factor REAL NOT NULL CHECK (ease_factor >= 1.0),
	interval_days INTEGER NOT NULL CHECK (interval_days >= 0),
	due_at INTEGER NOT NULL,
	last_reviewed_at INTEGER,
	lapse_count INTEGER NOT NULL DEFAULT 0 CHECK (lapse_count >= 0),
	review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
	version INTEGER NOT NULL CHECK (version > 0),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_review_states_user_due ON review_states(user_id, due_at, card_id);
CREATE INDEX IF NOT EXISTS idx_review_states_user_module ON review_states(user_id, module_id);
CREATE INDEX IF NOT EXISTS idx_review_states_due_user ON review_states(due_at, user_id);
`

// Open opens the database at dsn, applies the connection pragmas and ensures
// the schema is up to date. dsn may be a file path or a "file:" URI.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps writers queued in
	// the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ApplySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// ApplySchema creates any missing tables and indexes.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + defaultPragmas
	}
	return dsn + "?" + defaultPragmas
}

// toMicros stores times as UTC Unix microseconds, the precision the review
// service normalizes to. The range covers roughly 292,000 years either way.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(n int64) time.Time {
	return time.UnixMicro(n).UTC()
}
