package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Summary writes run.json, summary.md and metrics.json when a run ends.
type Summary struct {
	fs        afero.Fs
	outputDir string
}

// NewSummary creates a summary writer for outputDir.
func NewSummary(fs afero.Fs, outputDir string) *Summary {
	return &Summary{
		fs:        fs,
		outputDir: outputDir,
	}
}

// Append implements Sink. Results are only rendered at the end of the run.
func (w *Summary) Append(types.TestResult) error {
	return nil
}

// Finish implements Finisher.
func (w *Summary) Finish(report *types.RunReport) error {
	return w.WriteAll(report)
}

// Metrics are the aggregate numbers of a run.
type Metrics struct {
	Pages    int                    `json:"pages"`
	Checks   int                    `json:"checks"`
	Passed   int                    `json:"passed"`
	Warnings int                    `json:"warnings"`
	Failed   int                    `json:"failed"`
	Errored  int                    `json:"errored"`
	ByKind   map[types.TestKind]int `json:"failed_by_kind"`
	Duration string                 `json:"duration"`
}

// ComputeMetrics aggregates report.
func ComputeMetrics(report *types.RunReport) Metrics {
	counts := report.Counts()
	m := Metrics{
		Checks:   len(report.Results),
		Passed:   counts[types.VerdictPassed],
		Warnings: counts[types.VerdictWarning],
		Failed:   counts[types.VerdictFailed],
		ByKind:   make(map[types.TestKind]int),
		Duration: report.FinishedAt.Sub(report.StartedAt).Round(time.Second).String(),
	}

	pages := make(map[string]bool)
	for _, res := range report.Results {
		pages[res.Target.Label] = true
		if res.Errored {
			m.Errored++
		}
		if res.Verdict == types.VerdictFailed {
			m.ByKind[res.Kind]++
		}
	}
	m.Pages = len(pages)
	return m
}

// WriteAll writes all summary formats.
func (w *Summary) WriteAll(report *types.RunReport) error {
	// Ensure output directory exists
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteRunJSON(report); err != nil {
		return fmt.Errorf("failed to write run JSON: %w", err)
	}

	if err := w.WriteSummaryMarkdown(report); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	if err := w.WriteMetricsJSON(report); err != nil {
		return fmt.Errorf("failed to write metrics JSON: %w", err)
	}

	return nil
}

// WriteRunJSON writes the full run report as JSON
func (w *Summary) WriteRunJSON(report *types.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	return afero.WriteFile(w.fs, filepath.Join(w.outputDir, "run.json"), data, 0o644)
}

// WriteMetricsJSON writes the run metrics as JSON
func (w *Summary) WriteMetricsJSON(report *types.RunReport) error {
	data, err := json.MarshalIndent(ComputeMetrics(report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return afero.WriteFile(w.fs, filepath.Join(w.outputDir, "metrics.json"), data, 0o644)
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *Summary) WriteSummaryMarkdown(report *types.RunReport) error {
	var md strings.Builder

	md.WriteString("# SEO Page Check Summary\n\n")
	md.WriteString(fmt.Sprintf("**Site:** %s\n\n", report.Site.Origin))
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", report.RunID))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", report.StartedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", report.FinishedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Overall:** %s %s\n\n", icon(report.Overall()), report.Overall()))

	var page string
	for _, res := range report.Results {
		if res.Target.Label != page {
			page = res.Target.Label
			md.WriteString(fmt.Sprintf("## %s\n\n", page))
			md.WriteString(fmt.Sprintf("`%s`\n\n", res.Target.URL))
		}

		md.WriteString(fmt.Sprintf("### %s %s: %s\n\n", icon(res.Verdict), res.Kind.Title(), res.Verdict))
		if res.TestURL != "" {
			md.WriteString(fmt.Sprintf("- **Tested at:** %s\n", res.TestURL))
		}
		for _, key := range sortedKeys(res.Notes) {
			md.WriteString(fmt.Sprintf("- **%s:** %s\n", key, res.Notes[key]))
		}
		for _, a := range res.Artifacts {
			md.WriteString(fmt.Sprintf("- ![%s](%s)\n", a.Label, a.Path))
		}
		md.WriteString("\n")
	}

	m := ComputeMetrics(report)
	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Pages:** %d\n", m.Pages))
	md.WriteString(fmt.Sprintf("- **Checks:** %d\n", m.Checks))
	md.WriteString(fmt.Sprintf("- **Passed:** %d\n", m.Passed))
	md.WriteString(fmt.Sprintf("- **Warnings:** %d\n", m.Warnings))
	md.WriteString(fmt.Sprintf("- **Failed:** %d (%d errored)\n", m.Failed, m.Errored))
	md.WriteString(fmt.Sprintf("- **Duration:** %s\n", m.Duration))

	return afero.WriteFile(w.fs, filepath.Join(w.outputDir, "summary.md"), []byte(md.String()), 0o644)
}

func icon(v types.Verdict) string {
	switch v {
	case types.VerdictPassed:
		return "✅"
	case types.VerdictWarning:
		return "⚠️"
	default:
		return "❌"
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
