// Package report delivers test results to reporting sinks.
//
// Sinks receive every result as soon as it is produced. Sinks that also
// implement Finisher are given the complete RunReport once the run ends.
package report

import (
	"errors"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Sink accepts one test result at a time.
type Sink interface {
	Append(result types.TestResult) error
}

// Finisher is implemented by sinks that render the whole run.
type Finisher interface {
	Finish(report *types.RunReport) error
}

// Multi fans results out to several sinks. Every sink is called even when
// an earlier one fails; the errors are joined.
type Multi []Sink

// Append implements Sink.
func (m Multi) Append(result types.TestResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finish implements Finisher.
func (m Multi) Finish(report *types.RunReport) error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(report); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Memory collects results, for tests and callers that render themselves.
type Memory struct {
	Results []types.TestResult
	Report  *types.RunReport
}

// Append implements Sink.
func (m *Memory) Append(result types.TestResult) error {
	m.Results = append(m.Results, result)
	return nil
}

// Finish implements Finisher.
func (m *Memory) Finish(report *types.RunReport) error {
	m.Report = report
	return nil
}
