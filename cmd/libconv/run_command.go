package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/convert"
	"libconv/internal/history"
	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/power"
	"libconv/internal/preflight"
	"libconv/internal/publish"
	"libconv/internal/runlock"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var execute bool
	var unattended bool
	var shutdown bool
	var publishAfter bool

	cmd := &cobra.Command{
		Use:   "run [filter]",
		Short: "Convert the files matching a filter (plan-only unless --exec)",
		Long: `Select ledger records with a filter expression and run each one through
backup, transcode, probe, and the size policy.

Without --exec the run only writes the planned commands to the command log.
A fileSize > selection.min_file_size clause is added unless the filter
mentions fileSize. Create the cancel file (or run 'libconv cancel') to stop
after the current file.`,
		Example: `  libconv run "videoCodecName != 'hevc' AND frameHeight >= 720"
  libconv run --exec --yes --shutdown "filePath CONTAINS '/tv/'"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			expr, err := parseFilter(args)
			if err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			logger, runLog, err := ctx.logger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{
				Execute: execute,
				Publish: execute && publishAfter,
			})
			if failed := preflight.Failed(results); len(failed) > 0 {
				printPreflight(out, failed, isTerminal(out))
				return fmt.Errorf("preflight failed: %d required check(s) did not pass", len(failed))
			}

			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			sel, err := store.Select(expr, ledger.SelectOptions{MinFileSize: cfg.Selection.MinFileSize})
			if err != nil {
				return err
			}
			if sel.Len() == 0 {
				fmt.Fprintf(out, "No files match %s\n", sel.Query)
				return nil
			}

			opts := []convert.Option{
				convert.WithOperator(operatorFor(cmd, unattended)),
				convert.WithPublisher(publish.New(cfg, logger)),
				convert.WithPowerAction(power.New(cfg, nil, logger)),
			}
			if journal := openJournal(cfg, logger); journal != nil {
				defer journal.Close()
				opts = append(opts, convert.WithJournal(journal))
			}

			mode := convert.PublishAsk
			if publishAfter {
				mode = convert.PublishAlways
			}
			orch := convert.New(cfg, store, logger, opts...)
			session, runErr := orch.Run(cmd.Context(), sel, convert.RunOptions{
				Execute:  execute,
				Shutdown: shutdown,
				Publish:  mode,
			})
			if session != nil {
				printRunSummary(out, session, runLog)
			}
			if runErr != nil {
				return runErr
			}
			if session.Interrupted() {
				return errInterrupted
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&execute, "exec", false, "Execute the plan (default is plan-only)")
	cmd.Flags().BoolVarP(&unattended, "yes", "y", false, "Never prompt: continue past failures and decline optional steps")
	cmd.Flags().BoolVar(&shutdown, "shutdown", false, "Run the configured power action when the run ends")
	cmd.Flags().BoolVar(&publishAfter, "publish", false, "Publish converted directories when the run ends without asking")
	return cmd
}

// operatorFor prompts on the command's stdin when it is a terminal.
func operatorFor(cmd *cobra.Command, unattended bool) convert.Operator {
	in, _ := cmd.InOrStdin().(*os.File)
	return convert.OperatorFor(in, cmd.OutOrStdout(), unattended)
}

// openJournal opens the run history. Failures only cost the history, so
// they are logged and the run proceeds without it.
func openJournal(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	journal, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String("path", cfg.HistoryPath()),
			logging.String(logging.FieldErrorHint, "delete or migrate the history database"),
			logging.String(logging.FieldImpact, "this run will not appear in 'libconv history'"),
		)
		return nil
	}
	return journal
}

func printRunSummary(out io.Writer, session *convert.Session, runLog string) {
	rows := make([][]string, 0, len(session.Outcomes))
	for _, outcome := range session.Outcomes {
		saved := ""
		if outcome.State == convert.StateAccepted {
			saved = convert.FormatBytes(outcome.BytesSaved)
		}
		detail := outcome.Plan.SourcePath
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		rows = append(rows, []string{
			strconv.FormatInt(outcome.FileID, 10),
			string(outcome.State),
			saved,
			detail,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]column{numCol("ID"), col("State"), numCol("Saved"), col("Source")},
			rows,
		))
	}

	fmt.Fprintf(out, "Run %s %s: %d/%d processed\n", session.ID, session.State, session.Processed, session.Total)
	if session.Execute {
		fmt.Fprintf(out, "  %d accepted, %d reverted, %d failed, %d skipped\n",
			session.Count(convert.StateAccepted),
			session.Count(convert.StateReverted),
			session.Count(convert.StateFailed),
			session.Count(convert.StateSkipped),
		)
		fmt.Fprintf(out, "  Bytes saved: %s\n", convert.FormatBytes(session.BytesSaved))
	} else {
		fmt.Fprintf(out, "  %d planned, %d skipped (plan-only; rerun with --exec to convert)\n",
			session.Count(convert.StatePlanned),
			session.Count(convert.StateSkipped),
		)
	}
	if path := session.CommandLogPath(); path != "" {
		fmt.Fprintf(out, "  Command log: %s\n", path)
	}
	if runLog != "" {
		fmt.Fprintf(out, "  Run log: %s\n", runLog)
	}
}
