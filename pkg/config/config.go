// Package config loads the run configuration: the ordered page targets,
// per-check tunables, browser options and output layout.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/checks"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Report sink names accepted in Output.Reports.
const (
	ReportSummary = "summary"
	ReportCSV     = "csv"
	ReportPDF     = "pdf"
)

// Config represents the configuration of one run
type Config struct {
	// Pages to test, in order
	Pages Pages `yaml:"pages" json:"pages"`

	// Filters on page labels and check names (glob patterns)
	OnlyPages  []string `yaml:"only_pages" json:"only_pages"`
	OnlyChecks []string `yaml:"only_checks" json:"only_checks"`

	Browser BrowserConfig `yaml:"browser" json:"browser"`
	Checks  ChecksConfig  `yaml:"checks" json:"checks"`
	Output  OutputConfig  `yaml:"output" json:"output"`

	// SessionFile stores the signed-in Google session
	SessionFile string `yaml:"session_file" json:"session_file"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig defines the browser session
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" json:"headless"`
	SlowMo         time.Duration `yaml:"slow_mo" json:"slow_mo"`
	DefaultTimeout time.Duration `yaml:"default_timeout" json:"default_timeout"`
}

// ChecksConfig holds one section per check
type ChecksConfig struct {
	Performance    CheckConfig `yaml:"performance" json:"performance"`
	JsOnOff        CheckConfig `yaml:"js_on_off" json:"js_on_off"`
	MobileFriendly CheckConfig `yaml:"mobile_friendly" json:"mobile_friendly"`
	URLInspection  CheckConfig `yaml:"url_inspection" json:"url_inspection"`
}

// CheckConfig tunes one check. Zero durations and nil pointers keep the
// check's defaults; a diff_threshold of 0 demands an exact match.
type CheckConfig struct {
	Enabled       *bool         `yaml:"enabled" json:"enabled"`
	Device        string        `yaml:"device" json:"device"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
	StepTimeout   time.Duration `yaml:"step_timeout" json:"step_timeout"`
	Settle        time.Duration `yaml:"settle" json:"settle"`
	DiffThreshold *int          `yaml:"diff_threshold" json:"diff_threshold"`
	PassScore     *float64      `yaml:"pass_score" json:"pass_score"`
	OperatorPause *bool         `yaml:"operator_pause" json:"operator_pause"`
}

// OutputConfig defines where artifacts and reports go
type OutputConfig struct {
	Dir     string   `yaml:"dir" json:"dir"`
	Reports []string `yaml:"reports" json:"reports"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Dir receives the per-run log file
	Dir string `yaml:"dir" json:"dir"`
}

// Default returns a configuration suitable for interactive runs.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       false,
			DefaultTimeout: browser.DefaultTimeout,
		},
		Output: OutputConfig{
			Dir:     "output",
			Reports: []string{ReportSummary, ReportCSV},
		},
		SessionFile: filepath.Join(".seotests", "google-session.json"),
		Logging: LoggingConfig{
			Verbosity: "normal",
			Dir:       filepath.Join("output", "logs"),
		},
	}
}

// Load reads a YAML configuration file on top of Default.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ScreenshotDir is where screenshots are written.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.Output.Dir, "screenshots")
}

// ResultsDir is where reports are written.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.Output.Dir, "results")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Pages) == 0 {
		return errors.New("at least one page is required")
	}
	for _, p := range c.Pages {
		if p.Label == "" {
			return fmt.Errorf("page %q has no label", p.URL)
		}
		if _, err := types.SiteFromURL(p.URL); err != nil {
			return fmt.Errorf("page %q: %w", p.Label, err)
		}
	}

	if c.Output.Dir == "" {
		return errors.New("output directory is required")
	}
	for _, r := range c.Output.Reports {
		switch r {
		case ReportSummary, ReportCSV, ReportPDF:
		default:
			return fmt.Errorf("invalid report %q (must be 'summary', 'csv' or 'pdf')", r)
		}
	}

	if c.Browser.SlowMo < 0 || c.Browser.DefaultTimeout < 0 {
		return errors.New("browser durations cannot be negative")
	}

	for _, kind := range types.AllKinds {
		cc := c.Check(kind)
		if cc.ReadyTimeout < 0 || cc.StepTimeout < 0 || cc.Settle < 0 {
			return fmt.Errorf("check %s: durations cannot be negative", kind)
		}
		if cc.DiffThreshold != nil && *cc.DiffThreshold < 0 {
			return fmt.Errorf("check %s: diff_threshold cannot be negative", kind)
		}
		if cc.PassScore != nil && (*cc.PassScore < 0 || *cc.PassScore > 100) {
			return fmt.Errorf("check %s: pass_score must be between 0 and 100", kind)
		}
		if cc.Device != "" {
			if _, ok := browser.DeviceByName(cc.Device); !ok {
				return fmt.Errorf("check %s: unknown device %q", kind, cc.Device)
			}
		}
	}

	if _, err := compileAll(c.OnlyPages); err != nil {
		return fmt.Errorf("invalid only_pages: %w", err)
	}
	if _, err := compileAll(c.OnlyChecks); err != nil {
		return fmt.Errorf("invalid only_checks: %w", err)
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// Check returns the section of kind.
func (c *Config) Check(kind types.TestKind) CheckConfig {
	switch kind {
	case types.KindPerformance:
		return c.Checks.Performance
	case types.KindJsOnOff:
		return c.Checks.JsOnOff
	case types.KindMobileFriendly:
		return c.Checks.MobileFriendly
	case types.KindURLInspection:
		return c.Checks.URLInspection
	default:
		return CheckConfig{}
	}
}

// Targets returns the pages selected by only_pages, in configured order.
func (c *Config) Targets() ([]types.PageTarget, error) {
	patterns, err := compileAll(c.OnlyPages)
	if err != nil {
		return nil, err
	}
	var out []types.PageTarget
	for _, p := range c.Pages {
		if matchAny(patterns, p.Label) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Kinds returns the enabled checks selected by only_checks, in run order.
func (c *Config) Kinds() ([]types.TestKind, error) {
	patterns, err := compileAll(c.OnlyChecks)
	if err != nil {
		return nil, err
	}
	var out []types.TestKind
	for _, kind := range types.AllKinds {
		cc := c.Check(kind)
		if cc.Enabled != nil && !*cc.Enabled {
			continue
		}
		if matchAny(patterns, string(kind)) {
			out = append(out, kind)
		}
	}
	return out, nil
}

// Definition returns the check definition and settings for kind with the
// configured overrides applied.
func (c *Config) Definition(kind types.TestKind) (checks.Definition, checks.Settings, error) {
	def, err := checks.Lookup(kind)
	if err != nil {
		return checks.Definition{}, checks.Settings{}, err
	}

	cc := c.Check(kind)
	if cc.Device != "" {
		d, ok := browser.DeviceByName(cc.Device)
		if !ok {
			return checks.Definition{}, checks.Settings{}, fmt.Errorf("unknown device %q", cc.Device)
		}
		def.Device = d
	}

	s := def.Defaults
	if cc.ReadyTimeout > 0 {
		s.ReadyTimeout = cc.ReadyTimeout
	}
	if cc.StepTimeout > 0 {
		s.StepTimeout = cc.StepTimeout
	}
	if cc.Settle > 0 {
		s.Settle = cc.Settle
	}
	if cc.DiffThreshold != nil {
		s.DiffThreshold = *cc.DiffThreshold
	}
	if cc.PassScore != nil {
		s.PassScore = *cc.PassScore
	}
	if cc.OperatorPause != nil {
		s.OperatorPause = *cc.OperatorPause
	}
	return def, s, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// matchAny reports whether s matches a pattern; no patterns match all.
func matchAny(patterns []glob.Glob, s string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, g := range patterns {
		if g.Match(s) {
			return true
		}
	}
	return false
}
