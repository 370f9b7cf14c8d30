// Package runner orchestrates a run: every check against every page target,
// in order, on one shared browser session.
//
// A failing check never stops the run; it becomes a failed result. Only a
// browser that cannot be launched or a Google session that cannot be
// restored aborts the run, reported as ErrRunAborted.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/checks"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/report"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// ErrRunAborted is returned when the run cannot continue at all.
var ErrRunAborted = errors.New("run aborted")

// StagePanic is recorded in the notes of results recovered from a panic.
const StagePanic = "panic"

// Check is one test module as seen by the orchestrator.
type Check interface {
	Kind() types.TestKind
	NeedsSession() bool
	Execute(ctx context.Context, env checks.Env) types.TestResult
}

// Launcher starts and stops the shared browser session.
type Launcher interface {
	Start() error
	Shutdown() error
}

// Session restores the signed-in browser session, prompting the operator
// when needed.
type Session interface {
	Ensure(ctx context.Context, b browser.Browser, op steps.Operator) error
}

// Options configure an Orchestrator.
type Options struct {
	// Launcher is optional; without it the browser is assumed running.
	Launcher Launcher
	Browser  browser.Browser
	Checks   []Check

	// Session is required when any check needs a session.
	Session  Session
	Operator steps.Operator

	Sink    report.Sink
	Console *Console
	Log     logrus.FieldLogger

	RunID string
	Now   func() time.Time
}

// Orchestrator runs every check against every page target.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if len(opts.Checks) == 0 {
		return nil, errors.New("no checks to run")
	}
	if opts.Browser == nil {
		return nil, errors.New("no browser")
	}
	for _, c := range opts.Checks {
		if c.NeedsSession() && opts.Session == nil {
			return nil, fmt.Errorf("check %s needs a session store", c.Kind())
		}
	}
	if opts.Operator == nil {
		opts.Operator = steps.NoOperator
	}
	if opts.Sink == nil {
		opts.Sink = report.Multi{}
	}
	if opts.Console == nil {
		opts.Console = NewConsole(nil, LevelNormal)
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts}, nil
}

// Run executes every check for every target in order and returns the run
// report. The report is returned even when the run is aborted, holding the
// results gathered so far; sinks are finished in both cases.
func (o *Orchestrator) Run(ctx context.Context, targets []types.PageTarget) (*types.RunReport, error) {
	site, err := types.SiteFromTargets(targets)
	if err != nil {
		return nil, err
	}

	rep := &types.RunReport{
		RunID:     o.opts.RunID,
		Site:      site,
		StartedAt: o.opts.Now(),
		Results:   make([]types.TestResult, 0, len(targets)*len(o.opts.Checks)),
	}
	log := o.opts.Log.WithFields(logrus.Fields{"run": o.opts.RunID, "site": site.Domain})

	o.opts.Console.Header(fmt.Sprintf("SEO page checks: %s", site.Domain))

	runErr := o.run(ctx, log, site, targets, rep)

	rep.FinishedAt = o.opts.Now()
	if f, ok := o.opts.Sink.(report.Finisher); ok {
		if err := f.Finish(rep); err != nil {
			log.WithError(err).Warn("Failed to finish reports")
			o.opts.Console.Warningf("failed to write reports: %v", err)
		}
	}
	o.opts.Console.Summary(rep)

	if runErr != nil {
		log.WithError(runErr).Error("Run aborted")
		o.opts.Console.Errorf("%v", runErr)
		return rep, runErr
	}
	log.WithField("overall", rep.Overall().String()).Info("Run finished")
	return rep, nil
}

func (o *Orchestrator) run(ctx context.Context, log logrus.FieldLogger, site types.Site, targets []types.PageTarget, rep *types.RunReport) error {
	if o.opts.Launcher != nil {
		if err := o.opts.Launcher.Start(); err != nil {
			return fmt.Errorf("%w: browser failed to launch: %v", ErrRunAborted, err)
		}
		defer func() {
			if err := o.opts.Launcher.Shutdown(); err != nil {
				log.WithError(err).Warn("Browser shutdown failed")
			}
		}()
	}

	if o.needsSession() {
		if err := o.opts.Session.Ensure(ctx, o.opts.Browser, o.opts.Operator); err != nil {
			return fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
	}

	for i, target := range targets {
		o.opts.Console.Page(i+1, len(targets), target)
		env := checks.Env{Site: site, Target: target, FirstPage: i == 0}

		for _, check := range o.opts.Checks {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrRunAborted, err)
			}

			result := o.execute(ctx, log, check, env)
			rep.Results = append(rep.Results, result)
			o.opts.Console.Result(result)

			if err := o.opts.Sink.Append(result); err != nil {
				log.WithError(err).WithField("check", string(check.Kind())).Warn("Report sink rejected result")
			}
		}
	}
	return nil
}

// execute runs one check, converting a panic into a failed result.
func (o *Orchestrator) execute(ctx context.Context, log logrus.FieldLogger, check Check, env checks.Env) (result types.TestResult) {
	started := o.opts.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"page":  env.Target.Label,
				"check": string(check.Kind()),
				"panic": r,
			}).Error("Check panicked")

			result = types.TestResult{
				Kind:    check.Kind(),
				Target:  env.Target,
				Verdict: types.VerdictFailed,
				Errored: true,
				Notes: map[string]string{
					types.NoteError: fmt.Sprintf("panic: %v", r),
					types.NoteStage: StagePanic,
				},
				StartedAt:  started,
				FinishedAt: o.opts.Now(),
			}
		}
	}()
	return check.Execute(ctx, env)
}

func (o *Orchestrator) needsSession() bool {
	for _, c := range o.opts.Checks {
		if c.NeedsSession() {
			return true
		}
	}
	return false
}
