package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-srs/internal/api"
	"github.com/phrazzld/scry-srs/internal/config"
	"github.com/phrazzld/scry-srs/internal/domain/srs"
	"github.com/phrazzld/scry-srs/internal/events"
	"github.com/phrazzld/scry-srs/internal/service/auth"
	"github.com/phrazzld/scry-srs/internal/service/due"
	"github.com/phrazzld/scry-srs/internal/service/review"
	"github.com/phrazzld/scry-srs/internal/service/stats"
	"github.com/phrazzld/scry-srs/internal/store"
	"github.com/phrazzld/scry-srs/internal/task"
)

const defaultShutdownTimeout = 15 * time.Second

// application holds every long-lived component. It is built once per
// command and torn down by cleanup.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	states     store.ReviewStateStore
	content    contentSource
	jwtService auth.JWTService
	reviews    review.Service
	resolver   *due.Resolver
	aggregator *stats.Aggregator
	emitter    *events.InMemoryEventEmitter
	sweep      *task.DueSweep
}

// newApplication opens the database and wires the services on top of it.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app, err := newApplicationWithDB(cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApplicationWithDB(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	states, content, err := newStores(cfg.Database.Driver, db, logger)
	if err != nil {
		return nil, err
	}

	scheduler, err := srs.NewServiceWithParams(cfg.SRSParams())
	if err != nil {
		return nil, fmt.Errorf("failed to create SRS service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	retry := cfg.RetryPolicy()
	classifier := cfg.Classifier()
	policy := cfg.MasteredPolicy()

	emitter := events.NewInMemoryEventEmitter(logger)
	aggregator := stats.NewAggregator(states, content, stats.Config{
		Classifier:     classifier,
		MasteredPolicy: policy,
		CacheTTL:       cfg.Stats.CacheTTL,
		Retry:          retry,
	}, logger)
	emitter.RegisterHandler(aggregator)

	resolver := due.NewResolver(states, due.Config{
		MasteredPolicy: policy,
		Classifier:     classifier,
		Retry:          retry,
	}, logger)

	reviews := review.NewService(content, states, scheduler, classifier, emitter, retry, logger)

	sweep := task.NewDueSweep(states, resolver, task.NewLogSink(logger), task.SweepConfig{
		PageSize:    cfg.Sweep.PageSize,
		Concurrency: cfg.Sweep.Concurrency,
		Retry:       retry,
	}, logger)

	return &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		states:     states,
		content:    content,
		jwtService: jwtService,
		reviews:    reviews,
		resolver:   resolver,
		aggregator: aggregator,
		emitter:    emitter,
		sweep:      sweep,
	}, nil
}

// router mounts the HTTP handlers.
func (app *application) router() http.Handler {
	return api.NewRouter(api.RouterDeps{
		JWT:     app.jwtService,
		Reviews: api.NewReviewHandler(app.reviews, app.config.Retry.ConflictAttempts, app.logger),
		Due:     api.NewDueHandler(app.resolver, app.logger),
		Stats:   api.NewStatsHandler(app.aggregator, app.logger),
		DB:      app.db,
		Logger:  app.logger,
	})
}

// startHTTPServer serves until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (app *application) startHTTPServer(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := app.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	app.logger.Info("shutting down server", slog.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	app.logger.Info("server stopped")
	return nil
}

// cleanup releases the database connection.
func (app *application) cleanup() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", slog.Any("error", err))
	}
}
