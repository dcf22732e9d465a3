package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/utils"
)

func newAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey [key]",
		Short: "Generate an API key for the results bot and print its API_KEY_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				generated, err := utils.GenerateAPIKey()
				if err != nil {
					return err
				}
				key = generated
			}
			hash, err := utils.HashAPIKey(key)
			if err != nil {
				return fmt.Errorf("failed to hash api key: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "X-API-Key:    %s\n", key)
			fmt.Fprintf(out, "API_KEY_HASH: %s\n", hash)
			return nil
		},
	}
}
