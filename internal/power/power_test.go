package power_test

import (
	"context"
	"errors"
	"testing"

	"libconv/internal/config"
	"libconv/internal/power"
	"libconv/internal/procrun"
	"libconv/internal/services"
)

type recordingExecutor struct {
	command string
	args    []string
	err     error
}

func (r *recordingExecutor) Run(_ context.Context, command string, args []string, _ func(string)) (procrun.Result, error) {
	r.command = command
	r.args = args
	return procrun.Result{}, r.err
}

func TestRunExecutesConfiguredCommand(t *testing.T) {
	cfg := config.Default()
	exec := &recordingExecutor{}
	if err := power.New(&cfg, exec, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.command != "systemctl" || len(exec.args) != 1 || exec.args[0] != "suspend" {
		t.Fatalf("unexpected invocation: %s %v", exec.command, exec.args)
	}
}

func TestRunWithoutCommandIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Power.Command = " "
	exec := &recordingExecutor{}
	action := power.New(&cfg, exec, nil)
	if action.Configured() {
		t.Fatal("expected unconfigured action")
	}
	if err := action.Run(context.Background()); err != nil || exec.command != "" {
		t.Fatalf("expected no invocation, got %q (%v)", exec.command, err)
	}
}

func TestRunWrapsFailure(t *testing.T) {
	cfg := config.Default()
	exec := &recordingExecutor{err: &procrun.ExitError{Command: "systemctl", ExitCode: 1}}
	err := power.New(&cfg, exec, nil).Run(context.Background())
	if !errors.Is(err, services.ErrProcess) {
		t.Fatalf("expected process error, got %v", err)
	}
}
