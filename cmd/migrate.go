package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/config"
	"github.com/redrace/tournament-system/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(_ *config.Config, conn *sql.DB, logger *slog.Logger) error {
				if err := db.MigrateDown(conn, steps); err != nil {
					return fmt.Errorf("failed to roll back migrations: %w", err)
				}
				logger.Info("migrations rolled back", slog.Int("steps", steps))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(runMigrateUp)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(_ *config.Config, conn *sql.DB, logger *slog.Logger) error {
					version, dirty, err := db.MigrationVersion(conn)
					if err != nil {
						return fmt.Errorf("failed to read schema version: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func runMigrateUp(_ *config.Config, conn *sql.DB, logger *slog.Logger) error {
	if err := db.MigrateUp(conn); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

// withDB открывает только базу, без остальных зависимостей app.
func withDB(fn func(cfg *config.Config, conn *sql.DB, logger *slog.Logger) error) error {
	logger := newLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	conn, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(cfg, conn, logger)
}
