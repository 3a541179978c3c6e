package domain

import "time"

// RunReport is the stored record of one finished run.
type RunReport struct {
	RunID     string       `json:"run_id"`
	Suite     string       `json:"suite,omitempty"`
	Directory string       `json:"directory,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Crashed   bool         `json:"crashed"`
	Summary   Summary      `json:"summary"`
	Results   []TestResult `json:"results"`
}

// Faults returns the results that are neither successes nor plain
// notifications.
func (r RunReport) Faults() []TestResult {
	var faults []TestResult
	for _, res := range r.Results {
		if res.IsCritical() || res.Status() == StatusOmission {
			faults = append(faults, res)
		}
	}
	return faults
}
