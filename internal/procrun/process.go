package procrun

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"libconv/internal/services"
)

const (
	tailLines    = 20
	maxLineBytes = 1 << 20
	// interruptGrace is how long a child gets to exit after SIGINT before it is killed.
	interruptGrace = 15 * time.Second
)

// Result describes a finished process.
type Result struct {
	ExitCode int
	Duration time.Duration
	// Tail holds the last lines of output, oldest first.
	Tail []string
}

// ExitError reports a non-zero exit status.
type ExitError struct {
	Command  string
	ExitCode int
	Tail     []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

// Unwrap tags exit failures with services.ErrProcess.
func (e *ExitError) Unwrap() error { return services.ErrProcess }

// Option configures Start.
type Option func(*options)

type options struct {
	timeout time.Duration
	dir     string
}

// WithTimeout bounds the process lifetime. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Process is a running child with merged output.
type Process struct {
	command string
	cmd     *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	tail    []string
	closed  bool
	readErr error
	used    bool
}

// Start launches command with args. stdout and stderr share one pipe.
func Start(ctx context.Context, command string, args []string, opts ...Option) (*Process, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(command) == "" {
		return nil, services.Wrap(services.ErrSpawn, "procrun", "start", "empty command", nil)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if o.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrSpawn, "procrun", "pipe", command, err)
	}

	cmd := exec.CommandContext(runCtx, command, args...) //nolint:gosec
	cmd.Dir = o.dir
	cmd.Stdout = writer
	cmd.Stderr = writer
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptGrace

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		cancel()
		return nil, services.Wrap(services.ErrSpawn, "procrun", "start", command, err)
	}
	_ = writer.Close()

	p := &Process{
		command: command,
		cmd:     cmd,
		ctx:     runCtx,
		cancel:  cancel,
		started: time.Now(),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.read(reader)
	return p, nil
}

func (p *Process) read(r io.ReadCloser) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.mu.Lock()
		p.queue = append(p.queue, line)
		p.tail = append(p.tail, line)
		if len(p.tail) > tailLines {
			p.tail = p.tail[len(p.tail)-tailLines:]
		}
		p.mu.Unlock()
		p.cond.Broadcast()
	}
	p.mu.Lock()
	p.readErr = scanner.Err()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Lines yields output lines until the child closes its output. The sequence
// is single-use; a second iteration yields nothing.
func (p *Process) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		p.mu.Lock()
		if p.used {
			p.mu.Unlock()
			return
		}
		p.used = true
		p.mu.Unlock()

		for {
			p.mu.Lock()
			for len(p.queue) == 0 && !p.closed {
				p.cond.Wait()
			}
			if len(p.queue) == 0 {
				p.mu.Unlock()
				return
			}
			line := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			if !yield(line) {
				return
			}
		}
	}
}

// Wait blocks until the output is drained and the child exits.
func (p *Process) Wait() (Result, error) {
	defer p.cancel()

	p.mu.Lock()
	for !p.closed {
		p.cond.Wait()
	}
	readErr := p.readErr
	p.queue = nil
	p.mu.Unlock()

	waitErr := p.cmd.Wait()
	result := Result{
		ExitCode: p.cmd.ProcessState.ExitCode(),
		Duration: time.Since(p.started),
		Tail:     p.Tail(),
	}

	if waitErr != nil {
		if ctxErr := p.ctx.Err(); ctxErr != nil {
			return result, services.Wrap(services.ErrProcess, "procrun", "wait", p.command+" interrupted", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &ExitError{Command: p.command, ExitCode: result.ExitCode, Tail: result.Tail}
		}
		return result, services.Wrap(services.ErrProcess, "procrun", "wait", p.command, waitErr)
	}
	if readErr != nil {
		return result, services.Wrap(services.ErrProcess, "procrun", "read output", p.command, readErr)
	}
	return result, nil
}

// Tail returns the most recent output lines.
func (p *Process) Tail() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tail...)
}

// Run starts command, feeds every output line to onLine, and waits.
func Run(ctx context.Context, command string, args []string, onLine func(string), opts ...Option) (Result, error) {
	proc, err := Start(ctx, command, args, opts...)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	for line := range proc.Lines() {
		if onLine != nil {
			onLine(line)
		}
	}
	return proc.Wait()
}

// Runner adapts Run to an injectable value.
type Runner struct {
	Timeout time.Duration
}

// Run implements the executor contract used by the orchestrator and publisher.
func (r Runner) Run(ctx context.Context, command string, args []string, onLine func(string)) (Result, error) {
	return Run(ctx, command, args, onLine, WithTimeout(r.Timeout))
}

// scanLines splits on \n, \r\n, or a bare \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// A trailing \r may be the first half of \r\n; wait for more input.
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
