package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-srs/internal/config"
	"github.com/phrazzld/scry-srs/internal/platform/postgres"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/phrazzld/scry-srs/internal/service/review"
	"github.com/phrazzld/scry-srs/internal/service/stats"
	"github.com/phrazzld/scry-srs/internal/store"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// contentSource is the read-only view of the content system the services
// share: card lookup and access for reviews, module sizes for statistics.
type contentSource interface {
	review.ContentGateway
	stats.ModuleCatalog
}

// openDatabase opens the configured database. The sqlite driver also applies
// its schema; Postgres schemas are managed by the migrate command.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case driverPostgres:
		return postgres.Open(ctx, cfg.URL)
	case driverSQLite:
		return sqlite.Open(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newStores builds the review-state store and content gateway for driver.
func newStores(driver string, db *sql.DB, logger *slog.Logger) (store.ReviewStateStore, contentSource, error) {
	switch driver {
	case driverPostgres:
		return postgres.NewPostgresReviewStateStore(db, logger), postgres.NewContentGateway(db, logger), nil
	case driverSQLite:
		return sqlite.NewReviewStateStore(db, logger), sqlite.NewContentGateway(db, logger), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
