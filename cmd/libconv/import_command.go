package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/ledger"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import <inventory.json>",
		Short: "Build the ledger from a JSON inventory export",
		Long: `Import reads a JSON array of objects keyed by ledger column name and writes
them to paths.ledger_file. Rows without an id are numbered from 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			target := cfg.Paths.LedgerFile
			if err := refuseExisting(target, "ledger", overwrite); err != nil {
				return err
			}
			count, err := ledger.ImportJSON(source, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s\n", count, target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing ledger")
	return cmd
}
