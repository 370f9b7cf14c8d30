// Package steps drives sequences of wait-for-state / act-on-state steps
// against a live page.
//
// Every wait carries its own timeout. A step is either essential, in which
// case a failure propagates and fails the enclosing check, or best-effort,
// in which case the failure is logged as a warning, recorded as skipped,
// and execution continues.
package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
)

// ErrStepTimedOut matches every StepTimedOutError with errors.Is.
var ErrStepTimedOut = errors.New("step timed out")

// Common step timeouts.
const (
	TransientTimeout = 10 * time.Second
	ReportTimeout    = 120 * time.Second
)

// DefaultPollInterval is how often WaitForCondition re-evaluates.
const DefaultPollInterval = 250 * time.Millisecond

// StepTimedOutError reports a wait that exceeded its timeout.
type StepTimedOutError struct {
	Step      string
	Timeout   time.Duration
	Essential bool
	Err       error
}

func (e *StepTimedOutError) Error() string {
	return fmt.Sprintf("step '%s' timed out after %s", e.Step, e.Timeout)
}

// Is reports whether target is ErrStepTimedOut.
func (e *StepTimedOutError) Is(target error) bool {
	return target == ErrStepTimedOut
}

// Unwrap returns the underlying error
func (e *StepTimedOutError) Unwrap() error {
	return e.Err
}

// Action acts on the element a step waited for.
type Action func(ctx context.Context, el browser.Element) error

// Click clicks the element.
func Click() Action {
	return func(_ context.Context, el browser.Element) error {
		return el.Click()
	}
}

// Type types text into the element.
func Type(text string) Action {
	return func(_ context.Context, el browser.Element) error {
		return el.Type(text)
	}
}

// Sequence runs actions in order, stopping at the first error.
func Sequence(actions ...Action) Action {
	return func(ctx context.Context, el browser.Element) error {
		for _, act := range actions {
			if err := act(ctx, el); err != nil {
				return err
			}
		}
		return nil
	}
}

// Step is one wait (and optional action) against a page.
type Step struct {
	Name     string
	Selector string

	// State defaults to browser.StateVisible.
	State browser.ElementState

	// Timeout defaults to TransientTimeout.
	Timeout time.Duration

	Essential bool

	// Nth picks a match other than the first once the selector resolves:
	// 1 is the second match, -1 the last.
	Nth int

	// Action runs on the resolved element. A nil Action only waits.
	Action Action
}

func (s Step) timeout() time.Duration {
	if s.Timeout <= 0 {
		return TransientTimeout
	}
	return s.Timeout
}

// Executor runs steps against one page. It is not safe for concurrent use;
// steps against a page are strictly sequential.
type Executor struct {
	page    browser.Page
	log     logrus.FieldLogger
	poll    time.Duration
	skipped *[]string
}

// New creates an Executor for page.
func New(page browser.Page, log logrus.FieldLogger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		page:    page,
		log:     log,
		poll:    DefaultPollInterval,
		skipped: new([]string),
	}
}

// Fork returns an Executor for another page that shares e's logger, poll
// interval and skipped steps.
func (e *Executor) Fork(page browser.Page) *Executor {
	fork := *e
	fork.page = page
	return &fork
}

// WithPollInterval overrides DefaultPollInterval.
func (e *Executor) WithPollInterval(d time.Duration) *Executor {
	e.poll = d
	return e
}

// Skipped returns the names of best-effort steps that did not complete.
func (e *Executor) Skipped() []string {
	return append([]string(nil), (*e.skipped)...)
}

// Wait blocks until the step's selector resolves and returns the element.
func (e *Executor) Wait(ctx context.Context, step Step) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := step.State
	if state == "" {
		state = browser.StateVisible
	}

	el, err := e.page.WaitFor(step.Selector, browser.WaitOptions{State: state, Timeout: step.timeout()})
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return nil, &StepTimedOutError{Step: step.Name, Timeout: step.timeout(), Essential: step.Essential, Err: err}
		}
		return nil, fmt.Errorf("step '%s': %w", step.Name, err)
	}

	if step.Nth == 0 {
		return el, nil
	}

	all, err := e.page.QueryAll(step.Selector)
	if err != nil {
		return nil, fmt.Errorf("step '%s': %w", step.Name, err)
	}
	idx := step.Nth
	if idx < 0 {
		idx = len(all) + idx
	}
	if idx < 0 || idx >= len(all) {
		return nil, fmt.Errorf("step '%s': match %d of %d: %w", step.Name, step.Nth, len(all), browser.ErrNotFound)
	}
	return all[idx], nil
}

// WaitThenAct waits for the step's element and runs its action.
func (e *Executor) WaitThenAct(ctx context.Context, step Step) (browser.Element, error) {
	el, err := e.Wait(ctx, step)
	if err != nil {
		return nil, err
	}
	if step.Action != nil {
		if err := step.Action(ctx, el); err != nil {
			return nil, fmt.Errorf("step '%s' action failed: %w", step.Name, err)
		}
	}
	e.log.WithField("step", step.Name).Debug("Step completed")
	return el, nil
}

// BestEffort runs step and absorbs any failure. It reports whether the
// step completed; failures are logged as warnings and recorded as skipped.
func (e *Executor) BestEffort(ctx context.Context, step Step) (browser.Element, bool) {
	el, err := e.WaitThenAct(ctx, step)
	if err != nil {
		e.log.WithField("step", step.Name).WithError(err).Warn("Best-effort step skipped")
		*e.skipped = append(*e.skipped, step.Name)
		return nil, false
	}
	return el, true
}

// Run executes steps in order. Best-effort failures are absorbed; the
// first essential failure stops the sequence and is returned.
func (e *Executor) Run(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if !step.Essential {
			e.BestEffort(ctx, step)
			continue
		}
		if _, err := e.WaitThenAct(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// WaitForCondition polls pred until it returns true, fails, or timeout
// elapses, in which case a StepTimedOutError is returned.
func (e *Executor) WaitForCondition(ctx context.Context, name string, timeout time.Duration, pred func() (bool, error)) error {
	return waitForCondition(ctx, name, timeout, e.poll, pred)
}

func waitForCondition(ctx context.Context, name string, timeout, poll time.Duration, pred func() (bool, error)) error {
	if timeout <= 0 {
		timeout = TransientTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		ok, err := pred()
		if err != nil {
			return fmt.Errorf("step '%s': %w", name, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &StepTimedOutError{Step: name, Timeout: timeout, Essential: true}
		case <-ticker.C:
		}
	}
}

// Settle pauses for d to let progressively rendered content finish.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
