package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"libconv/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var target string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initTarget(target)
			if err != nil {
				return err
			}
			if err := refuseExisting(path, "config file", overwrite); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(path); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", path)
			fmt.Fprintln(out, "Set paths.work_dir and backup.root before the first run.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "path", "p", "", "Destination (default ~/.config/libconv/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(flag)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

// refuseExisting fails when path exists and overwrite is off.
func refuseExisting(path, what string, overwrite bool) error {
	if overwrite {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists at %s (use --overwrite to replace it)", what, path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check %s: %w", what, err)
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report the resolved paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			source := ctx.configPath
			if !ctx.configExists {
				source += " (not found; defaults used)"
			}
			rows := [][]string{
				{"Config", source},
				{"Working directory", cfg.Paths.WorkDir},
				{"Ledger", cfg.Paths.LedgerFile},
				{"Command log", cfg.Paths.CommandLog},
				{"Backup root", cfg.Backup.Root},
				{"Encoder", cfg.Encoder.Command + " " + strings.Join(cfg.Encoder.Args, " ")},
				{"History", yesNo(cfg.History.Enabled)},
			}
			fmt.Fprintln(out, renderTable([]column{col("Setting"), col("Value")}, rows))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
