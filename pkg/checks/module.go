// Package checks runs the page checks. Each check is the same linear state
// machine, parameterized by a Definition:
//
//	Navigate -> OperatorPause -> Prepare -> WaitForReady -> Dismiss ->
//	Settle -> Collect -> Compare -> Validate -> Emit
//
// States are never revisited. A failing essential step turns the result
// into an errored, failed result that names the stage; nothing is retried.
// Every page surface a check opens is closed before Execute returns.
package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/capture"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/extract"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/imagediff"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/validate"
)

// Stage names recorded in the notes of errored results.
const (
	StageOpen     = "open"
	StageNavigate = "navigate"
	StageOperator = "operator"
	StagePrepare  = "prepare"
	StageReady    = "ready"
	StageDismiss  = "dismiss"
	StageSettle   = "settle"
	StageCollect  = "collect"
	StageCompare  = "compare"
)

// Env is the per-invocation context of a check.
type Env struct {
	Site   types.Site
	Target types.PageTarget

	// FirstPage is true for the first page target of a run.
	FirstPage bool
}

// Settings are the tunables of one check.
type Settings struct {
	ReadyTimeout  time.Duration
	StepTimeout   time.Duration
	Settle        time.Duration
	DiffThreshold int
	PassScore     float64
	OperatorPause bool
}

// Hook is a Collect or Compare stage implementation.
type Hook func(ctx context.Context, r *Run) error

// Definition describes one check.
type Definition struct {
	Kind   types.TestKind
	Device browser.Device

	// Tag prefixes every artifact name of the check.
	Tag string

	// ToolURL is the first URL the check visits.
	ToolURL func(env Env) string

	// NavigateWait defaults to browser.WaitLoad.
	NavigateWait browser.WaitUntil

	// NeedsSession seeds the surface with the stored login session.
	NeedsSession bool

	// OperatorPrompt, when set, suspends the check until the operator
	// acknowledges it (if Settings.OperatorPause is on).
	OperatorPrompt string

	// Prepare returns the steps run before the ready gate.
	Prepare func(env Env) []steps.Step

	// Ready is the essential gate for "tool results are ready".
	Ready steps.Step

	// Dismiss is a best-effort step, e.g. closing a consent banner. With
	// DismissFirstPageOnly it only runs for the first page of a run.
	Dismiss              *steps.Step
	DismissFirstPageOnly bool

	// After are steps run once the tool is ready and settled.
	After []steps.Step

	Collect Hook
	Compare Hook

	Defaults Settings
}

// Deps are the collaborators shared by every check of a run.
type Deps struct {
	Browser  browser.Browser
	Fs       afero.Fs
	Operator steps.Operator
	Log      logrus.FieldLogger

	// ScreenshotDir receives every artifact.
	ScreenshotDir string

	// StorageStatePath is the stored login session, if any.
	StorageStatePath string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Module executes one Definition.
type Module struct {
	def       Definition
	settings  Settings
	deps      Deps
	validator validate.Validator
}

// New creates a Module. Zero durations in settings fall back to the
// definition's defaults. DiffThreshold and PassScore are taken as given, so
// callers start from def.Defaults.
func New(def Definition, settings Settings, deps Deps) (*Module, error) {
	if def.ToolURL == nil {
		return nil, fmt.Errorf("check %s has no tool url", def.Kind)
	}
	if deps.Browser == nil {
		return nil, fmt.Errorf("check %s has no browser", def.Kind)
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Operator == nil {
		deps.Operator = steps.NoOperator
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	settings = settings.withDefaults(def.Defaults)

	v, err := validate.For(def.Kind, validate.Options{PassScore: settings.PassScore})
	if err != nil {
		return nil, err
	}

	return &Module{def: def, settings: settings, deps: deps, validator: v}, nil
}

// Kind returns the check kind.
func (m *Module) Kind() types.TestKind {
	return m.def.Kind
}

// Settings returns the effective settings.
func (m *Module) Settings() Settings {
	return m.settings
}

// NeedsSession reports whether the check runs signed in.
func (m *Module) NeedsSession() bool {
	return m.def.NeedsSession
}

// Execute runs the check for env.Target and always returns a result.
func (m *Module) Execute(ctx context.Context, env Env) types.TestResult {
	result := types.TestResult{
		Kind:      m.def.Kind,
		Target:    env.Target,
		TestURL:   m.def.ToolURL(env),
		Notes:     make(map[string]string),
		StartedAt: m.deps.Now(),
	}
	log := m.deps.Log.WithFields(logrus.Fields{"page": env.Target.Label, "check": string(m.def.Kind)})

	opts := browser.PageOptions{Device: m.def.Device}
	if m.def.NeedsSession {
		opts.StorageStatePath = m.deps.StorageStatePath
	}
	page, err := m.deps.Browser.NewPage(opts)
	if err != nil {
		return m.errored(log, result, StageOpen, err)
	}
	defer closePage(log, page)

	run := &Run{
		Env:      env,
		Page:     page,
		Steps:    steps.New(page, log),
		Log:      log,
		Settings: m.settings,
		result:   &result,
		module:   m,
		capturer: capture.New(m.deps.Fs, m.deps.ScreenshotDir, env.Site).WithClock(m.deps.Now),
		differ:   imagediff.New(m.deps.Fs),
	}

	stages := []struct {
		name string
		fn   Hook
	}{
		{StageNavigate, m.navigate},
		{StageOperator, m.pause},
		{StagePrepare, m.prepare},
		{StageReady, m.ready},
		{StageDismiss, m.dismiss},
		{StageSettle, m.settle},
		{StageCollect, m.def.Collect},
		{StageCompare, m.def.Compare},
	}

	for _, stage := range stages {
		if stage.fn == nil {
			continue
		}
		log.WithField("stage", stage.name).Debug("Entering stage")
		if err := stage.fn(ctx, run); err != nil {
			run.noteSkipped()
			describe(result.Findings, result.Notes)
			return m.errored(log, result, stage.name, err)
		}
	}

	run.noteSkipped()
	result.Verdict = m.validator.Validate(result.Findings)
	describe(result.Findings, result.Notes)
	result.FinishedAt = m.deps.Now()

	log.WithField("verdict", result.Verdict.String()).Info("Check finished")
	return result
}

func (m *Module) errored(log logrus.FieldLogger, result types.TestResult, stage string, err error) types.TestResult {
	result.Errored = true
	result.Verdict = types.VerdictFailed
	result.Notes[types.NoteError] = err.Error()
	result.Notes[types.NoteStage] = stage
	result.FinishedAt = m.deps.Now()

	log.WithField("stage", stage).WithError(err).Error("Check failed")
	return result
}

func (m *Module) navigate(_ context.Context, r *Run) error {
	wait := m.def.NavigateWait
	if wait == "" {
		wait = browser.WaitLoad
	}
	return r.Page.Navigate(r.result.TestURL, browser.NavigateOptions{WaitUntil: wait, Timeout: m.settings.ReadyTimeout})
}

func (m *Module) pause(ctx context.Context, _ *Run) error {
	if !m.settings.OperatorPause || m.def.OperatorPrompt == "" {
		return nil
	}
	return m.deps.Operator.Acknowledge(ctx, m.def.OperatorPrompt)
}

func (m *Module) prepare(ctx context.Context, r *Run) error {
	if m.def.Prepare == nil {
		return nil
	}
	return r.Steps.Run(ctx, m.tuneAll(m.def.Prepare(r.Env))...)
}

func (m *Module) ready(ctx context.Context, r *Run) error {
	if m.def.Ready.Selector == "" {
		return nil
	}
	gate := m.def.Ready
	gate.Essential = true
	if m.settings.ReadyTimeout > 0 {
		gate.Timeout = m.settings.ReadyTimeout
	}
	if _, err := r.Steps.Wait(ctx, gate); err != nil {
		return err
	}

	// tools rewrite their URL once the report is ready
	if u := r.Page.URL(); u != "" && u != "about:blank" {
		r.result.TestURL = u
	}
	return nil
}

func (m *Module) dismiss(ctx context.Context, r *Run) error {
	if m.def.Dismiss == nil || (m.def.DismissFirstPageOnly && !r.Env.FirstPage) {
		return nil
	}
	step := m.tune(*m.def.Dismiss)
	step.Essential = false
	r.Steps.BestEffort(ctx, step)
	return nil
}

func (m *Module) settle(ctx context.Context, r *Run) error {
	if err := steps.Settle(ctx, m.settings.Settle); err != nil {
		return err
	}
	return r.Steps.Run(ctx, m.tuneAll(m.def.After)...)
}

func (m *Module) tune(step steps.Step) steps.Step {
	if step.Timeout <= 0 && m.settings.StepTimeout > 0 {
		step.Timeout = m.settings.StepTimeout
	}
	return step
}

func (m *Module) tuneAll(in []steps.Step) []steps.Step {
	out := make([]steps.Step, 0, len(in))
	for _, s := range in {
		out = append(out, m.tune(s))
	}
	return out
}

func (s Settings) withDefaults(def Settings) Settings {
	if s.ReadyTimeout <= 0 {
		s.ReadyTimeout = def.ReadyTimeout
	}
	if s.StepTimeout <= 0 {
		s.StepTimeout = def.StepTimeout
	}
	if s.Settle <= 0 {
		s.Settle = def.Settle
	}
	return s
}

// describe adds the human readable notes for findings.
func describe(f types.Findings, notes map[string]string) {
	if f.Score.Valid {
		notes[types.NoteScore] = fmt.Sprintf("%.0f", f.Score.Float64)
	}
	if f.MobileFriendly.Valid {
		notes[types.NoteMobileFriendly] = f.MobileFriendly.String
	}
	if f.ResourcesStatus.Valid {
		notes[types.NoteResources] = "Page Resources: " + f.ResourcesStatus.String
	}
	if f.VisualDifference.Valid {
		if f.VisualDifference.Bool {
			notes[types.NoteVisual] = "Visual differences in page rendering"
		} else {
			notes[types.NoteVisual] = "No visual differences in page rendering"
		}
	}
	if f.Diff != nil && f.Diff.DimensionMismatch {
		notes[types.NoteVisual] += " (" + imagediff.ErrDimensionMismatch.Error() + ")"
	}
}

func closePage(log logrus.FieldLogger, page browser.Page) {
	if err := page.Close(); err != nil {
		log.WithError(err).Warn("Failed to close page")
	}
}

// Run is the state of one executing check, handed to its hooks.
type Run struct {
	Env      Env
	Page     browser.Page
	Steps    *steps.Executor
	Log      logrus.FieldLogger
	Settings Settings

	// Render is the screenshot the tool rendered of the page, when the
	// tool exposes one.
	Render *types.ScreenshotArtifact

	// Baseline is the primary screenshot a variant is compared against.
	Baseline *types.ScreenshotArtifact

	result   *types.TestResult
	module   *Module
	capturer *capture.Capturer
	differ   *imagediff.Engine
}

// Findings returns the findings being collected.
func (r *Run) Findings() *types.Findings {
	return &r.result.Findings
}

// Note records a human readable note.
func (r *Run) Note(key, value string) {
	r.result.Notes[key] = value
}

// Prefix returns the artifact prefix for tag, e.g. "psi_home".
func (r *Run) Prefix(tag string) string {
	return tag + "_" + types.SanitizeLabel(r.Env.Target.Label)
}

// Capture screenshots surface and adds the artifact to the result. A
// capture that cannot be taken is recorded as a gap and reported as false.
func (r *Run) Capture(surface capture.Surface, clip *capture.Clip, tag, label string) (types.ScreenshotArtifact, bool) {
	artifact, err := r.capturer.Capture(surface, clip, r.Prefix(tag))
	return r.keep(artifact, err, label)
}

// SaveImage stores an image the tool rendered, trimmed to maxHeight.
func (r *Run) SaveImage(data []byte, tag, label string, maxHeight int) (types.ScreenshotArtifact, bool) {
	artifact, err := r.capturer.SaveImage(data, r.Prefix(tag), maxHeight)
	return r.keep(artifact, err, label)
}

func (r *Run) keep(artifact types.ScreenshotArtifact, err error, label string) (types.ScreenshotArtifact, bool) {
	if err != nil {
		if !errors.Is(err, capture.ErrCaptureUnavailable) {
			r.Log.WithError(err).Error("Failed to store screenshot")
		}
		r.gap(label, err)
		return types.ScreenshotArtifact{}, false
	}
	artifact.Label = label
	r.result.Artifacts = append(r.result.Artifacts, artifact)
	return artifact, true
}

func (r *Run) gap(label string, err error) {
	msg := fmt.Sprintf("%s: %v", label, err)
	if prev := r.result.Notes[types.NoteCaptureGap]; prev != "" {
		msg = prev + "; " + msg
	}
	r.result.Notes[types.NoteCaptureGap] = msg
	r.Log.WithField("artifact", label).WithError(err).Warn("Screenshot unavailable")
}

// Snapshot parses the current page markup.
func (r *Run) Snapshot() (*extract.Document, error) {
	markup, err := r.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	return extract.Parse(markup)
}

// Compare diffs two artifacts with the check's threshold. A significant
// difference writes a diff image named after tag.
func (r *Run) Compare(a, b types.ScreenshotArtifact, tag string) (types.DiffResult, error) {
	return r.differ.Compare(a, b, imagediff.Options{
		Threshold: r.Settings.DiffThreshold,
		DiffPath:  r.capturer.Path(r.Prefix(tag)),
	})
}

// Variant opens a second surface, runs fn on it and closes it again.
func (r *Run) Variant(opts browser.PageOptions, fn func(page browser.Page, exec *steps.Executor) error) error {
	page, err := r.module.deps.Browser.NewPage(opts)
	if err != nil {
		return fmt.Errorf("failed to open variant surface: %w", err)
	}
	defer closePage(r.Log, page)

	return fn(page, r.Steps.Fork(page))
}

// CompareLiveRender renders the target with device and compares it to the
// tool's render, setting VisualDifference. Without a tool render the
// difference stays unknown.
func (r *Run) CompareLiveRender(ctx context.Context, device browser.Device, tag string) error {
	if r.Render == nil {
		r.gap("Live render comparison", errors.New("no tool render to compare"))
		return nil
	}

	var live types.ScreenshotArtifact
	var ok bool
	err := r.Variant(browser.PageOptions{Device: device}, func(page browser.Page, _ *steps.Executor) error {
		if err := page.Navigate(r.Env.Target.URL, browser.NavigateOptions{WaitUntil: browser.WaitNetworkIdle, Timeout: r.Settings.ReadyTimeout}); err != nil {
			return fmt.Errorf("failed to load live page: %w", err)
		}
		live, ok = r.Capture(capture.FullPage{Page: page}, nil, tag+"-live", "Live render")
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	diff, err := r.Compare(*r.Render, live, tag+"-diff")
	if err != nil {
		return err
	}
	f := r.Findings()
	f.Diff = &diff
	f.VisualDifference.SetValid(diff.Significant)
	return nil
}

func (r *Run) noteSkipped() {
	if skipped := r.Steps.Skipped(); len(skipped) > 0 {
		r.result.Notes[types.NoteSkippedSteps] = strings.Join(skipped, ", ")
	}
}
