// Package power runs the configured end-of-run power action.
package power

import (
	"context"
	"log/slog"
	"strings"

	"libconv/internal/config"
	"libconv/internal/logging"
	"libconv/internal/procrun"
	"libconv/internal/services"
)

// Executor runs one external command. procrun.Runner implements it.
type Executor interface {
	Run(ctx context.Context, command string, args []string, onLine func(string)) (procrun.Result, error)
}

// Action is a shutdown or suspend command.
type Action struct {
	command string
	args    []string
	exec    Executor
	logger  *slog.Logger
}

// New builds the action from cfg. A nil exec uses procrun.Runner.
func New(cfg *config.Config, exec Executor, logger *slog.Logger) *Action {
	if exec == nil {
		exec = procrun.Runner{}
	}
	return &Action{
		command: strings.TrimSpace(cfg.Power.Command),
		args:    cfg.Power.Args,
		exec:    exec,
		logger:  logging.NewComponentLogger(logger, "power"),
	}
}

// Configured reports whether a command is set.
func (a *Action) Configured() bool {
	return a != nil && a.command != ""
}

// Run executes the command. With no command configured it does nothing.
func (a *Action) Run(ctx context.Context) error {
	if !a.Configured() {
		return nil
	}
	a.logger.Info("executing power action", logging.String("command", a.command), logging.Any("args", a.args))
	_, err := a.exec.Run(ctx, a.command, a.args, func(line string) {
		a.logger.Info("power action output", logging.String("line", line))
	})
	if err != nil {
		return services.Wrap(services.ErrProcess, "power", "run "+a.command, "", err)
	}
	return nil
}
