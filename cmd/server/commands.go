package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-srs/internal/config"
	"github.com/phrazzld/scry-srs/internal/platform/logger"
	"github.com/phrazzld/scry-srs/internal/platform/postgres"
	"github.com/phrazzld/scry-srs/internal/platform/sqlite"
	"github.com/phrazzld/scry-srs/internal/service/auth"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Every subcommand loads configuration
// from the --config file and SCRY_ environment variables.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "scry",
		Short:         "Spaced-repetition review engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logger.Setup(logger.Config{Level: cfg.Server.LogLevel, Format: cfg.Server.LogFormat})
		log.Info("configuration loaded",
			slog.Int("port", cfg.Server.Port),
			slog.String("log_level", cfg.Server.LogLevel),
			slog.String("database_driver", cfg.Database.Driver))
		return cfg, log, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newSweepCmd(load),
		newTokenCmd(load),
		newSeedCmd(load),
	)
	return root
}

type loadFunc func() (*config.Config, *slog.Logger, error)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the review API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			return app.startHTTPServer(ctx)
		},
	}
}

func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|reset|redo]",
		Short: "Apply or inspect database migrations",
		Long: "Runs the embedded goose migrations against the configured Postgres database. " +
			"The sqlite driver creates its schema on open, so only \"up\" applies there.",
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}

			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if cfg.Database.Driver == driverSQLite {
				if command != "up" {
					return fmt.Errorf("migrate %s is not supported for the sqlite driver", command)
				}
				log.Info("sqlite schema is up to date")
				return nil
			}
			return postgres.RunMigrations(cmd.Context(), db, command, log, args[min(1, len(args)):]...)
		},
	}
}

func newSweepCmd(load loadFunc) *cobra.Command {
	var asOfFlag string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send reminders to every learner with cards due",
		Long: "Runs one reminder sweep and exits. Intended to be started by an external " +
			"scheduler such as cron. Prints the sweep report as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			asOf := time.Now().UTC()
			if asOfFlag != "" {
				if asOf, err = time.Parse(time.RFC3339, asOfFlag); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			report, runErr := app.sweep.Run(ctx, asOf)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to write sweep report: %w", err)
			}
			if runErr != nil {
				return fmt.Errorf("sweep stopped early: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "sweep as of this RFC 3339 time (default now)")
	return cmd
}

func newTokenCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "token USER_ID",
		Short: "Mint an access token for a user (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}
			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to create JWT service: %w", err)
			}
			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}

func newSeedCmd(load loadFunc) *cobra.Command {
	var (
		title string
		cards int
	)

	cmd := &cobra.Command{
		Use:   "seed USER_ID",
		Short: "Create a module and enroll a user in it (sqlite development mode only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != driverSQLite {
				return fmt.Errorf("seed requires the sqlite driver, got %q", cfg.Database.Driver)
			}
			if cards < 1 {
				return fmt.Errorf("--cards must be positive")
			}
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}

			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			moduleID := uuid.New()
			cardIDs := make([]uuid.UUID, cards)
			for i := range cardIDs {
				cardIDs[i] = uuid.New()
			}
			if err := sqlite.SeedModule(cmd.Context(), db, moduleID, title, cardIDs); err != nil {
				return fmt.Errorf("failed to seed module: %w", err)
			}
			if err := sqlite.SeedEnrollment(cmd.Context(), db, userID, moduleID); err != nil {
				return fmt.Errorf("failed to enroll user: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ModuleID uuid.UUID   `json:"module_id"`
				CardIDs  []uuid.UUID `json:"card_ids"`
			}{moduleID, cardIDs})
		},
	}
	cmd.Flags().StringVar(&title, "title", "Sample module", "module title")
	cmd.Flags().IntVar(&cards, "cards", 10, "number of cards to create")
	return cmd
}
