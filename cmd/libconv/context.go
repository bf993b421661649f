package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/filter"
	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/services"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// logger builds the run logger and prunes run logs past retention. The
// returned path is the JSON log of this invocation.
func (c *commandContext) logger() (*slog.Logger, string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	logger, runLog, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: logging.RunLogPattern,
		Exclude: []string{runLog},
	})
	return logger, runLog, nil
}

// openLedger loads the configured ledger and its selection file location.
func openLedger(cfg *config.Config) (*ledger.Store, error) {
	store := ledger.Open(cfg.Paths.LedgerFile, cfg.Paths.SelectionFile)
	if _, err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// parseFilter joins args into one expression so unquoted filters work.
func parseFilter(args []string) (filter.Expr, error) {
	src := strings.TrimSpace(strings.Join(args, " "))
	expr, err := filter.Parse(src, ledger.Schema())
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "filter", "parse", src, err)
	}
	return expr, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
