// Command migrate applies the goose SQL migrations to the deal engine database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/logger"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger
	dir string

	rootCmd = &cobra.Command{
		Use:           "migrate",
		Short:         "Apply deal engine schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err = logger.NewLogger(&cfg.Logging, &cfg.App)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			if !cmd.Flags().Changed("dir") {
				dir = cfg.Database.MigrationsDir
			}
			goose.SetLogger(zap.NewStdLog(log))
			return goose.SetDialect("postgres")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory holding the SQL migrations (defaults to database.migrationsDir)")

	rootCmd.AddCommand(
		dbCommand("up", "Apply all pending migrations", cobra.NoArgs, func(ctx context.Context, db *sql.DB, _ []string) error {
			return goose.UpContext(ctx, db, dir)
		}),
		dbCommand("up-to <version>", "Apply migrations up to and including a version", cobra.ExactArgs(1), func(ctx context.Context, db *sql.DB, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return goose.UpToContext(ctx, db, dir, version)
		}),
		dbCommand("down", "Roll back the latest migration", cobra.NoArgs, func(ctx context.Context, db *sql.DB, _ []string) error {
			return goose.DownContext(ctx, db, dir)
		}),
		dbCommand("redo", "Roll back and reapply the latest migration", cobra.NoArgs, func(ctx context.Context, db *sql.DB, _ []string) error {
			return goose.RedoContext(ctx, db, dir)
		}),
		dbCommand("status", "Show applied and pending migrations", cobra.NoArgs, func(ctx context.Context, db *sql.DB, _ []string) error {
			return goose.StatusContext(ctx, db, dir)
		}),
		dbCommand("version", "Print the current schema version", cobra.NoArgs, func(ctx context.Context, db *sql.DB, _ []string) error {
			return goose.VersionContext(ctx, db, dir)
		}),
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an empty SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Create(nil, dir, args[0], "sql"); err != nil {
					return fmt.Errorf("failed to create migration: %w", err)
				}
				return nil
			},
		},
	)
}

// dbCommand builds a subcommand that runs fn against an open database
func dbCommand(use, short string, args cobra.PositionalArgs, fn func(ctx context.Context, db *sql.DB, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("postgres", cfg.Database.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			name := cmd.Name()
			if err := fn(cmd.Context(), db, args); err != nil {
				return fmt.Errorf("migrate %s failed: %w", name, err)
			}
			log.Info("Migration command finished",
				zap.String("command", name),
				zap.String("dir", dir),
				zap.String("database", cfg.Database.Name),
			)
			return nil
		},
	}
}

func parseVersion(s string) (int64, error) {
	version, err := strconv.ParseInt(s, 10, 64)
	if err != nil || version < 1 {
		return 0, fmt.Errorf("invalid migration version %q", s)
	}
	return version, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}
