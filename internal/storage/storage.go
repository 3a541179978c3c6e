// Package storage persists run reports: the last run as a JSON file for the
// faults viewer, and a run history in MySQL.
package storage

import (
	"errors"

	"github.com/acarl005/stripansi"

	"gocut/internal/domain"
)

// ErrNoRuns is returned by Load when nothing was stored yet.
var ErrNoRuns = errors.New("no stored test run")

// Storage persists and loads run reports.
type Storage interface {
	Save(report domain.RunReport) error
	// Load returns the most recently saved report.
	Load() (*domain.RunReport, error)
}

// clean strips terminal escape sequences from captured output so stored
// reports render the same everywhere.
func clean(report domain.RunReport) domain.RunReport {
	results := make([]domain.TestResult, len(report.Results))
	for i, r := range report.Results {
		if r.Stdout() == "" && r.Stderr() == "" {
			results[i] = r
			continue
		}
		results[i] = r.WithOutput(stripansi.Strip(r.Stdout()), stripansi.Strip(r.Stderr()))
	}
	report.Results = results
	return report
}
