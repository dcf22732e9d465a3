package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/config"
	"github.com/redrace/tournament-system/middleware"
	"github.com/redrace/tournament-system/repositories"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <discord-username>",
		Short: "Issue an API token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, conn *sql.DB, logger *slog.Logger) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()

				user, err := repositories.NewPostgresUserRepository(conn).GetByDiscordUsername(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to find user %q: %w", args[0], err)
				}
				token, err := middleware.IssueToken(cfg.JWTSecretKey, user, ttl)
				if err != nil {
					return err
				}
				logger.Info("token issued", slog.Int("user_id", user.ID), slog.Duration("ttl", ttl))
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
