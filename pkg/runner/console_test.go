package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelQuiet, ParseLevel("quiet"))
	assert.Equal(t, LevelNormal, ParseLevel("normal"))
	assert.Equal(t, LevelNormal, ParseLevel(""))
	assert.Equal(t, LevelVerbose, ParseLevel("verbose"))
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
}

func TestConsole_Result(t *testing.T) {
	failed := types.TestResult{
		Kind:    types.KindPerformance,
		Verdict: types.VerdictFailed,
		Errored: true,
		Notes:   map[string]string{types.NoteStage: "ready", types.NoteError: "step '.lh-report' timed out after 2m0s"},
	}
	started := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	passed := types.TestResult{
		Kind:       types.KindJsOnOff,
		Verdict:    types.VerdictPassed,
		Artifacts:  []types.ScreenshotArtifact{{Path: "/out/a.png"}},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}

	tests := []struct {
		name     string
		level    Level
		contains []string
		excludes []string
	}{
		{
			name:     "quiet shows failures only",
			level:    LevelQuiet,
			contains: []string{"Page Speed Insights: failed (ready)"},
			excludes: []string{"JavaScript On/Off", "timed out"},
		},
		{
			name:     "normal",
			level:    LevelNormal,
			contains: []string{"Page Speed Insights: failed (ready)", "✓ JavaScript On/Off: passed"},
			excludes: []string{"timed out", "/out/a.png", "took"},
		},
		{
			name:     "verbose adds notes",
			level:    LevelVerbose,
			contains: []string{"error: step '.lh-report' timed out after 2m0s", "took 1.5s"},
			excludes: []string{"/out/a.png"},
		},
		{
			name:     "debug adds artifacts",
			level:    LevelDebug,
			contains: []string{"→ /out/a.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := NewConsole(&buf, tt.level)
			c.Result(failed)
			c.Result(passed)

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, LevelQuiet)

	start := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	c.Summary(&types.RunReport{
		Site:       types.Site{Domain: "example.com"},
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Results: []types.TestResult{
			{Verdict: types.VerdictPassed},
			{Verdict: types.VerdictWarning},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "RUN SUMMARY")
	assert.Contains(t, out, "Overall: WARNING")
	assert.Contains(t, out, "Site: example.com")
	assert.Contains(t, out, "Duration: 1m35s")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 warnings")
	assert.Contains(t, out, "0 failed")
}

func TestConsole_HeaderHiddenWhenQuiet(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, LevelQuiet).Header("SEO page checks")
	assert.Empty(t, buf.String())

	NewConsole(&buf, LevelNormal).Header("SEO page checks")
	assert.Contains(t, buf.String(), "SEO page checks")
}
