package domain

import "time"

// Summary aggregates the outcome of a run.
type Summary struct {
	Cases         int           `json:"cases"`
	Tests         int           `json:"tests"`
	Assertions    int           `json:"assertions"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	Errors        int           `json:"errors"`
	Pendings      int           `json:"pendings"`
	Notifications int           `json:"notifications"`
	Omissions     int           `json:"omissions"`
	Crashes       int           `json:"crashes"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Add counts one result of the given status.
func (s *Summary) Add(status Status) {
	switch status {
	case StatusSuccess:
		s.Successes++
	case StatusNotification:
		s.Notifications++
	case StatusOmission:
		s.Omissions++
	case StatusPending:
		s.Pendings++
	case StatusFailure:
		s.Failures++
	case StatusError:
		s.Errors++
	case StatusCrash:
		s.Crashes++
	}
}

// Count returns the number of results of the given status.
func (s Summary) Count(status Status) int {
	switch status {
	case StatusSuccess:
		return s.Successes
	case StatusNotification:
		return s.Notifications
	case StatusOmission:
		return s.Omissions
	case StatusPending:
		return s.Pendings
	case StatusFailure:
		return s.Failures
	case StatusError:
		return s.Errors
	case StatusCrash:
		return s.Crashes
	}
	return 0
}

// Success reports whether nothing failed, errored or crashed. Pending
// tests do not make a run fail.
func (s Summary) Success() bool {
	return s.Failures == 0 && s.Errors == 0 && s.Crashes == 0
}

// Worst is the most severe status counted, or StatusSuccess.
func (s Summary) Worst() Status {
	for st := StatusCrash; st > StatusSuccess; st-- {
		if s.Count(st) > 0 {
			return st
		}
	}
	return StatusSuccess
}
