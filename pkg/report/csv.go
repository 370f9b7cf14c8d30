package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// DefaultCSVName is the file the test URL log is appended to.
const DefaultCSVName = "results-test-urls.csv"

// CSVLog appends one "label","test url" row per result, so the tool pages
// a run visited can be reopened later.
type CSVLog struct {
	fs   afero.Fs
	path string
}

// NewCSVLog creates a CSV log at path.
func NewCSVLog(fs afero.Fs, path string) *CSVLog {
	return &CSVLog{fs: fs, path: path}
}

// Append implements Sink.
func (c *CSVLog) Append(result types.TestResult) error {
	f, err := c.fs.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	label := fmt.Sprintf("%s - %s", result.Target.Label, result.Kind.Title())
	if err := w.Write([]string{label, result.TestURL}); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
