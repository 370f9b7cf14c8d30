package steps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrOperatorInputClosed is returned when the operator's input ends before
// a prompt was acknowledged.
var ErrOperatorInputClosed = errors.New("operator input closed")

// Operator is the human in the loop. Acknowledge blocks until the operator
// confirms prompt, e.g. after solving a CAPTCHA in the visible browser.
// There is no timeout; only ctx ends the wait.
type Operator interface {
	Acknowledge(ctx context.Context, prompt string) error
}

// OperatorFunc adapts a function to Operator.
type OperatorFunc func(ctx context.Context, prompt string) error

// Acknowledge implements Operator.
func (f OperatorFunc) Acknowledge(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// NoOperator acknowledges every prompt immediately, for unattended runs.
var NoOperator = OperatorFunc(func(context.Context, string) error { return nil })

// ConsoleOperator prompts on Out and waits for a line on In.
type ConsoleOperator struct {
	lines chan error
	in    *bufio.Reader
	out   io.Writer
}

// NewConsoleOperator creates a ConsoleOperator.
func NewConsoleOperator(in io.Reader, out io.Writer) *ConsoleOperator {
	return &ConsoleOperator{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Acknowledge implements Operator. A read abandoned because ctx ended is
// consumed by the next call. Closed input is not an acknowledgment; use
// NoOperator for unattended runs.
func (c *ConsoleOperator) Acknowledge(ctx context.Context, prompt string) error {
	fmt.Fprintf(c.out, "\n%s\nPress Enter to continue... ", prompt)

	if c.lines == nil {
		c.lines = make(chan error, 1)
		go c.read(c.lines)
	}

	select {
	case err := <-c.lines:
		c.lines = nil
		if errors.Is(err, ErrOperatorInputClosed) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to read operator input: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ConsoleOperator) read(done chan<- error) {
	line, err := c.in.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			err = ErrOperatorInputClosed
		} else {
			// a last line without newline still counts
			err = nil
		}
	}
	done <- err
}
