// Package event defines the signals a run emits and a typed subject for
// observing them.
package event

import (
	"fmt"
	"time"

	"gocut/internal/domain"
)

// Kind enumerates the lifecycle signals of a run.
type Kind int

const (
	ReadySuite Kind = iota
	StartSuite
	StartCase
	StartIteratedTest
	StartTest
	PassAssertion
	Success
	Failure
	Error
	Pending
	Notification
	Omission
	Crash
	CompleteTest
	CompleteIteratedTest
	CompleteCase
	CompleteSuite
	Crashed
)

var kindNames = [...]string{
	ReadySuite:           "ready-suite",
	StartSuite:           "start-suite",
	StartCase:            "start-case",
	StartIteratedTest:    "start-iterated-test",
	StartTest:            "start-test",
	PassAssertion:        "pass-assertion",
	Success:              "success",
	Failure:              "failure",
	Error:                "error",
	Pending:              "pending",
	Notification:         "notification",
	Omission:             "omission",
	Crash:                "crash",
	CompleteTest:         "complete-test",
	CompleteIteratedTest: "complete-iterated-test",
	CompleteCase:         "complete-case",
	CompleteSuite:        "complete-suite",
	Crashed:              "crashed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindForStatus maps a result status to the signal that announces it.
func KindForStatus(s domain.Status) Kind {
	switch s {
	case domain.StatusNotification:
		return Notification
	case domain.StatusOmission:
		return Omission
	case domain.StatusPending:
		return Pending
	case domain.StatusFailure:
		return Failure
	case domain.StatusError:
		return Error
	case domain.StatusCrash:
		return Crash
	}
	return Success
}

// IsResult reports whether events of this kind carry a TestResult.
func (k Kind) IsResult() bool {
	return k >= Success && k <= Crash
}

// Event is one signal. Fields not relevant to Kind are left zero.
type Event struct {
	Kind   Kind
	Source string
	RunID  string
	Suite  *domain.TestSuite
	Case   *domain.TestCase
	Test   *domain.Test
	Data   *domain.TestData
	Result *domain.TestResult

	// Success is set on complete-* events.
	Success bool
	Time    time.Time

	// TotalCases and TotalTests are set on ready-suite.
	TotalCases int
	TotalTests int
}
