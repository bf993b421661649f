package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/notifications"
	"libconv/internal/publish"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "publish [filter]",
		Short: "Sync the directories of converted files to production",
		Long: `Sync every directory holding a selected file from publish.source_prefix to
publish.dest_prefix, then refresh the media server when it is enabled.

Without a filter, converted non-trailer files are selected:
  ` + publish.DefaultFilter,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filterArgs := args
			if len(filterArgs) == 0 {
				filterArgs = []string{publish.DefaultFilter}
			}
			expr, err := parseFilter(filterArgs)
			if err != nil {
				return err
			}
			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			records := store.Filter(expr, ledger.SelectOptions{})
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No files to publish")
				return nil
			}

			if dryRun {
				mappings, skipped := publish.Directories(records, cfg.Publish.SourcePrefix, cfg.Publish.DestPrefix)
				printMappings(out, mappings, skipped)
				return nil
			}

			logger, _, err := ctx.logger()
			if err != nil {
				return err
			}
			report, err := publish.New(cfg, logger).Publish(cmd.Context(), records)
			printMappings(out, report.Directories, report.Skipped)
			if err != nil {
				return err
			}
			if report.Refreshed {
				fmt.Fprintln(out, "Media server library refresh requested")
			}
			notifier := notifications.NewService(cfg)
			if nerr := notifier.NotifyPublishCompleted(cmd.Context(), len(report.Directories)); nerr != nil {
				logger.Debug("publish notification failed", logging.Error(nerr))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the directory mappings without syncing")
	return cmd
}

func printMappings(out io.Writer, mappings []publish.Mapping, skipped []string) {
	if len(mappings) > 0 {
		rows := make([][]string, 0, len(mappings))
		for _, m := range mappings {
			rows = append(rows, []string{m.Source, m.Dest})
		}
		fmt.Fprintln(out, renderTable([]column{col("Source"), col("Destination")}, rows))
	}
	for _, dir := range skipped {
		fmt.Fprintf(out, "Skipped (outside source prefix): %s\n", dir)
	}
}
