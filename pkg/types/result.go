package types

import (
	"time"

	"gopkg.in/guregu/null.v3"
)

// TestKind names one of the fixed checks run against every page.
type TestKind string

const (
	KindPerformance    TestKind = "performance"     // KindPerformance is the PageSpeed Insights report.
	KindMobileFriendly TestKind = "mobile_friendly" // KindMobileFriendly is the mobile-friendly test.
	KindJsOnOff        TestKind = "js_on_off"       // KindJsOnOff compares renders with JavaScript on and off.
	KindURLInspection  TestKind = "url_inspection"  // KindURLInspection is the Search Console live URL test.
)

// AllKinds lists the checks in the order the orchestrator runs them.
var AllKinds = []TestKind{KindPerformance, KindJsOnOff, KindMobileFriendly, KindURLInspection}

// Title returns the human readable name of the check.
func (k TestKind) Title() string {
	switch k {
	case KindPerformance:
		return "Page Speed Insights"
	case KindMobileFriendly:
		return "Mobile-Friendly Test"
	case KindJsOnOff:
		return "JavaScript On/Off"
	case KindURLInspection:
		return "Google Search Console - URL Inspection"
	default:
		return string(k)
	}
}

// Region is a clip rectangle in CSS pixels.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScreenshotArtifact is a stored image. Artifacts are never mutated after
// capture; results and diffs only reference them.
type ScreenshotArtifact struct {
	Path       string    `json:"path"`
	Label      string    `json:"label,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Region     *Region   `json:"region,omitempty"`
}

// DiffResult is the outcome of comparing two artifacts pixel by pixel.
type DiffResult struct {
	PixelDelta        int    `json:"pixel_delta"`
	Threshold         int    `json:"threshold"`
	Significant       bool   `json:"significant"`
	DimensionMismatch bool   `json:"dimension_mismatch,omitempty"`
	DiffArtifactPath  string `json:"diff_artifact_path,omitempty"`
}

// Findings is the data extracted during one check. Every field is optional:
// an invalid (absent) value means the check could not observe it.
type Findings struct {
	// Score is the performance score (0-100).
	Score null.Float `json:"score"`

	// MobileFriendly is the verdict text of the mobile-friendly tool.
	MobileFriendly null.String `json:"mobile_friendly"`

	// VisualDifference reports whether a tool render differs from the live page.
	VisualDifference null.Bool `json:"visual_difference"`

	// ResourcesStatus is the "Page resources" summary text.
	ResourcesStatus null.String `json:"resources_status"`

	// Diff is the comparison backing VisualDifference or the JS on/off check.
	Diff *DiffResult `json:"diff,omitempty"`
}

// Note keys shared by checks and reports.
const (
	NoteError           = "error"
	NoteStage           = "failed_stage"
	NoteResources       = "page_resources"
	NoteVisual          = "visual_difference"
	NoteScore           = "score"
	NoteMobileFriendly  = "mobile_friendly"
	NoteCaptureGap      = "capture_gap"
	NoteSkippedSteps    = "skipped_steps"
	NoteValidationInput = "validation_input"
)

// TestResult is the outcome of one (page, check) pair.
type TestResult struct {
	Kind       TestKind             `json:"kind"`
	Target     PageTarget           `json:"target"`
	TestURL    string               `json:"test_url"`
	Artifacts  []ScreenshotArtifact `json:"artifacts"`
	Findings   Findings             `json:"findings"`
	Verdict    Verdict              `json:"verdict"`
	Notes      map[string]string    `json:"notes,omitempty"`
	Errored    bool                 `json:"errored,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Duration returns how long the check ran.
func (r TestResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunReport is the ordered sequence of results produced by one invocation.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Site       Site         `json:"site"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TestResult `json:"results"`
}

// Counts returns the number of results per verdict.
func (r *RunReport) Counts() map[Verdict]int {
	counts := map[Verdict]int{}
	for _, res := range r.Results {
		counts[res.Verdict]++
	}
	return counts
}

// Overall returns the most severe verdict in the report.
func (r *RunReport) Overall() Verdict {
	overall := VerdictPassed
	for _, res := range r.Results {
		overall = Worse(overall, res.Verdict)
	}
	return overall
}
