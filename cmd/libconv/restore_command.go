package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/restore"
)

func newRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup> <target>",
		Short: "Put an archived original back in place of a converted file",
		Long: `Restore replaces target with the archived original at backup. The original
is moved into target's directory under its own name and target is deleted.

When backup is a small do-not-process marker left by a revert, the marker is
removed instead and target is left alone.`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			target, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			result, err := restore.Restore(backup, target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.Action {
			case restore.ActionPlaceholderRemoved:
				fmt.Fprintf(out, "Removed placeholder %q at %s; %s left unchanged\n", result.Placeholder, backup, target)
			default:
				fmt.Fprintf(out, "Restored original to %s\n", result.Path)
			}
			return nil
		},
	}
}
