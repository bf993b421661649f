package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"libconv/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var planOnly bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check tools, paths, and services a run depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{
				Execute: !planOnly,
				Publish: !planOnly,
			})
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			fmt.Fprintln(out, heading("Preflight", colorize))
			printPreflight(out, results, colorize)
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&planOnly, "plan-only", false, "Only check what a plan-only run needs")
	return cmd
}

func printPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	for _, r := range results {
		label, color := "OK", text.Colors{text.FgGreen}
		switch {
		case !r.Passed && r.Optional:
			label, color = "WARN", text.Colors{text.FgYellow}
		case !r.Passed:
			label, color = "FAIL", text.Colors{text.FgRed}
		}
		if !colorize {
			color = nil
		}
		fmt.Fprintln(out, checkLine(r.Name, label, r.Detail, color))
	}
}
