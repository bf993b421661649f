package convert

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Operator answers the questions a run asks a human.
type Operator interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)
	// Acknowledge blocks until the operator has seen message.
	Acknowledge(ctx context.Context, message string) error
}

// AutoOperator answers every question with Answer and never blocks.
type AutoOperator struct {
	Answer bool
}

func (a AutoOperator) Confirm(context.Context, string) (bool, error) { return a.Answer, nil }

func (AutoOperator) Acknowledge(context.Context, string) error { return nil }

// PromptOperator asks on a terminal.
type PromptOperator struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptOperator reads answers from in and writes prompts to out.
func NewPromptOperator(in io.Reader, out io.Writer) *PromptOperator {
	return &PromptOperator{in: bufio.NewReader(in), out: out}
}

// Confirm repeats the question until it gets a y/yes or n/no answer.
// End of input counts as no.
func (p *PromptOperator) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		fmt.Fprintf(p.out, "%s (Y|N)? ", question)
		line, err := p.readLine(ctx)
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err == io.EOF {
			fmt.Fprintln(p.out)
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// Acknowledge prints message and waits for Enter.
func (p *PromptOperator) Acknowledge(ctx context.Context, message string) error {
	fmt.Fprintf(p.out, "%s\nPress Enter to continue... ", message)
	_, err := p.readLine(ctx)
	if err == io.EOF {
		fmt.Fprintln(p.out)
		return nil
	}
	return err
}

func (p *PromptOperator) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// OperatorFor picks a terminal prompt when in is interactive and the run is
// not unattended. Otherwise acknowledgements pass straight through and every
// optional follow-up is declined.
func OperatorFor(in *os.File, out io.Writer, unattended bool) Operator {
	if unattended || !IsInteractive(in) {
		return AutoOperator{}
	}
	return NewPromptOperator(in, out)
}
