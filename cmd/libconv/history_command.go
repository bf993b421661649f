package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"libconv/internal/convert"
	"libconv/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, or the jobs of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled (history.enabled = false)")
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				run, err := store.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				jobs, err := store.JobsForRun(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, struct {
						Run  history.Run   `json:"run"`
						Jobs []history.Job `json:"jobs"`
					}{run, jobs})
				}
				printRunDetail(out, run, jobs)
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					runMode(run.Execute),
					run.State,
					strconv.Itoa(run.Total),
					strconv.Itoa(run.Accepted),
					strconv.Itoa(run.Reverted),
					strconv.Itoa(run.Failed),
					convert.FormatBytes(run.BytesSaved),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					col("Run"), col("Started"), col("Mode"), col("State"),
					numCol("Files"), numCol("Accepted"), numCol("Reverted"), numCol("Failed"), numCol("Saved"),
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show the jobs of one run (id or unique prefix)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printRunDetail(out io.Writer, run history.Run, jobs []history.Job) {
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Query:    %s\n", run.Query)
	fmt.Fprintf(out, "Mode:     %s\n", runMode(run.Execute))
	fmt.Fprintf(out, "State:    %s\n", run.State)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.DateTime), run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(out, "Saved:    %s bytes\n", convert.FormatBytes(run.BytesSaved))
	if len(jobs) == 0 {
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.SourcePath
		if job.ErrorMessage != "" {
			detail = job.ErrorKind + ": " + job.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.FileID, 10),
			job.State,
			convert.FormatBytes(job.PreSize),
			convert.FormatBytes(job.PostSize),
			convert.FormatBytes(job.BytesSaved),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{numCol("ID"), col("State"), numCol("Before"), numCol("After"), numCol("Saved"), col("Source")},
		rows,
	))
}

func runMode(execute bool) string {
	if execute {
		return "exec"
	}
	return "plan"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
