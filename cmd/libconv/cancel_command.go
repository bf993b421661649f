package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Ask the active run to stop after the current file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.CancelSentinel
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				return fmt.Errorf("create cancel file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s; the active run stops before its next file\n", path)
			return nil
		},
	}
}
