package runner

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows only failures and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows run progress (default)
	LevelNormal
	// LevelVerbose adds the duration and notes of every result
	LevelVerbose
	// LevelDebug adds artifact paths
	LevelDebug
)

// ParseLevel maps a verbosity name onto a Level. Unknown names are normal.
func ParseLevel(verbosity string) Level {
	switch verbosity {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

// Console prints human-facing run progress.
type Console struct {
	level  Level
	writer io.Writer
	styles styles
}

// NewConsole creates a console reporter writing to w (stdout when nil).
func NewConsole(w io.Writer, level Level) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		level:  level,
		writer: w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	if c.level < LevelNormal {
		return
	}
	bar := strings.Repeat("=", 70)
	fmt.Fprintf(c.writer, "\n%s\n%s\n%s\n",
		c.styles.header.Render(bar),
		c.styles.header.Render("  "+message),
		c.styles.header.Render(bar))
}

// Page prints the section divider of a page target.
func (c *Console) Page(index, total int, target types.PageTarget) {
	if c.level < LevelNormal {
		return
	}
	fmt.Fprintln(c.writer)
	fmt.Fprintln(c.writer, c.styles.section.Render(fmt.Sprintf("▶ [%d/%d] %s", index, total, target.Label)))
	fmt.Fprintln(c.writer, c.styles.muted.Render("  "+target.URL))
	fmt.Fprintln(c.writer, c.styles.rule.Render(strings.Repeat("─", 50)))
}

// Result prints the verdict line of one result. Failures are shown even
// in quiet mode.
func (c *Console) Result(result types.TestResult) {
	if c.level < LevelNormal && result.Verdict != types.VerdictFailed {
		return
	}

	line := fmt.Sprintf("  %s %s: %s", c.mark(result.Verdict), result.Kind.Title(), result.Verdict)
	if result.Errored {
		line += fmt.Sprintf(" (%s)", result.Notes[types.NoteStage])
	}
	fmt.Fprintln(c.writer, c.verdictStyle(result.Verdict).Render(line))

	if c.level >= LevelVerbose {
		if !result.FinishedAt.IsZero() {
			fmt.Fprintln(c.writer, c.styles.muted.Render(fmt.Sprintf("    took %s", result.Duration().Round(time.Millisecond))))
		}
		keys := make([]string, 0, len(result.Notes))
		for k := range result.Notes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(c.writer, c.styles.muted.Render(fmt.Sprintf("    %s: %s", k, result.Notes[k])))
		}
	}
	if c.level >= LevelDebug {
		for _, a := range result.Artifacts {
			fmt.Fprintln(c.writer, c.styles.muted.Render(fmt.Sprintf("    → %s", a.Path)))
		}
	}
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	fmt.Fprintln(c.writer, c.styles.warning.Render("⚠ Warning: "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(c.writer, c.styles.failed.Render("✗ Error: "+fmt.Sprintf(format, args...)))
}

// Summary prints the final run summary.
func (c *Console) Summary(report *types.RunReport) {
	bar := strings.Repeat("=", 70)
	fmt.Fprintln(c.writer)
	fmt.Fprintln(c.writer, c.styles.header.Render(bar))
	fmt.Fprintln(c.writer, c.styles.header.Render("  RUN SUMMARY"))
	fmt.Fprintln(c.writer, c.styles.header.Render(bar))

	overall := report.Overall()
	fmt.Fprintf(c.writer, "  Overall: %s\n", c.verdictStyle(overall).Render(strings.ToUpper(overall.String())))
	fmt.Fprintf(c.writer, "  Site: %s\n", c.styles.text.Render(report.Site.Domain))
	fmt.Fprintf(c.writer, "  Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))

	counts := report.Counts()
	fmt.Fprintf(c.writer, "  Checks: %d (%s, %s, %s)\n",
		len(report.Results),
		c.styles.passed.Render(fmt.Sprintf("%d passed", counts[types.VerdictPassed])),
		c.styles.warning.Render(fmt.Sprintf("%d warnings", counts[types.VerdictWarning])),
		c.styles.failed.Render(fmt.Sprintf("%d failed", counts[types.VerdictFailed])))

	fmt.Fprintln(c.writer, c.styles.header.Render(bar))
}

func (c *Console) mark(v types.Verdict) string {
	switch v {
	case types.VerdictPassed:
		return "✓"
	case types.VerdictWarning:
		return "⚠"
	default:
		return "✗"
	}
}

func (c *Console) verdictStyle(v types.Verdict) lipgloss.Style {
	switch v {
	case types.VerdictPassed:
		return c.styles.passed
	case types.VerdictWarning:
		return c.styles.warning
	default:
		return c.styles.failed
	}
}
