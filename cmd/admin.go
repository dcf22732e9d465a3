package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/models"
)

// withApp собирает зависимости, выполняет fn и печатает результат в JSON.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPickemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pickems",
		Short: "Pickems maintenance",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "rescore",
			Short: "Recompute race pickems points from completed races",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
					return a.pickemsService.Rescore(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "award-top",
			Short: "Award points for top picks that made the cut",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
					return a.pickemsService.AwardTopPicks(ctx)
				})
			},
		},
	)
	return cmd
}

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Group maintenance",
	}

	var round string
	assign := &cobra.Command{
		Use:   "assign-brackets",
		Short: "Assign brackets to the groups of a round in blocks of six",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := models.ParseRound(round)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.groupService.AssignBrackets(ctx, r)
			})
		},
	}
	assign.Flags().StringVar(&round, "round", string(models.RoundOne), "round whose groups get brackets")
	cmd.AddCommand(assign)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List groups of the current round",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.groupService.List(ctx, nil)
			})
		},
	})
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tournament data",
	}

	var out string
	standings := &cobra.Command{
		Use:   "standings",
		Short: "Write the current standings to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				standings, err := a.tournamentService.Standings(ctx)
				if err != nil {
					return nil, err
				}
				if err := exportStandingsFile(out, standings); err != nil {
					return nil, err
				}
				return map[string]any{"file": out, "rows": len(standings)}, nil
			})
		},
	}
	standings.Flags().StringVarP(&out, "output", "o", "standings.xlsx", "output file")
	cmd.AddCommand(standings)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print tournament statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.statsService.Overview(ctx)
			})
		},
	})
	return cmd
}

