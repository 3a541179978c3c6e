package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Location identifies the source position an assertion was raised from.
type Location struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Function string `json:"function,omitempty"`
}

func (l Location) String() string {
	if l.File == "" {
		return l.Function
	}
	if l.Function == "" {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d: %s()", l.File, l.Line, l.Function)
}

// ResultSpec carries the fields used to build a TestResult.
type ResultSpec struct {
	Status      Status        `json:"status"`
	SuiteName   string        `json:"suite,omitempty"`
	CaseName    string        `json:"case,omitempty"`
	TestName    string        `json:"test,omitempty"`
	DataName    string        `json:"data,omitempty"`
	Message     string        `json:"message,omitempty"`
	UserMessage string        `json:"user_message,omitempty"`
	Location    Location      `json:"location"`
	Timestamp   time.Time     `json:"timestamp"`
	Elapsed     time.Duration `json:"elapsed,omitempty"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
}

// TestResult is an immutable snapshot of one outcome raised by a test.
// The zero value is a success without any identity.
type TestResult struct {
	spec ResultSpec
}

// NewTestResult builds a result. A zero timestamp is replaced by the
// current time.
func NewTestResult(spec ResultSpec) TestResult {
	if spec.Timestamp.IsZero() {
		spec.Timestamp = time.Now()
	}
	return TestResult{spec: spec}
}

func (r TestResult) Status() Status         { return r.spec.Status }
func (r TestResult) SuiteName() string      { return r.spec.SuiteName }
func (r TestResult) CaseName() string       { return r.spec.CaseName }
func (r TestResult) TestName() string       { return r.spec.TestName }
func (r TestResult) DataName() string       { return r.spec.DataName }
func (r TestResult) UserMessage() string    { return r.spec.UserMessage }
func (r TestResult) SystemMessage() string  { return r.spec.Message }
func (r TestResult) Location() Location     { return r.spec.Location }
func (r TestResult) Timestamp() time.Time   { return r.spec.Timestamp }
func (r TestResult) Elapsed() time.Duration { return r.spec.Elapsed }
func (r TestResult) Stdout() string         { return r.spec.Stdout }
func (r TestResult) Stderr() string         { return r.spec.Stderr }
func (r TestResult) Spec() ResultSpec       { return r.spec }
func (r TestResult) IsCritical() bool       { return r.spec.Status.IsCritical() }

// WithStatus returns a copy carrying a different status.
func (r TestResult) WithStatus(s Status) TestResult {
	r.spec.Status = s
	return r
}

// Message joins the user supplied message and the system message the way
// they are shown to people.
func (r TestResult) Message() string {
	switch {
	case r.spec.UserMessage == "":
		return r.spec.Message
	case r.spec.Message == "":
		return r.spec.UserMessage
	default:
		return r.spec.UserMessage + "\n" + r.spec.Message
	}
}

// FullName is the slash separated identity of the test that produced the
// result, with the data name appended in parentheses.
func (r TestResult) FullName() string {
	var parts []string
	for _, p := range []string{r.spec.CaseName, r.spec.TestName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	name := strings.Join(parts, "/")
	if r.spec.DataName != "" {
		name += " (" + r.spec.DataName + ")"
	}
	return name
}

// WithOutput returns a copy with captured process output attached.
func (r TestResult) WithOutput(stdout, stderr string) TestResult {
	r.spec.Stdout = stdout
	r.spec.Stderr = stderr
	return r
}

// WithElapsed returns a copy with the elapsed time set.
func (r TestResult) WithElapsed(d time.Duration) TestResult {
	r.spec.Elapsed = d
	return r
}

func (r TestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.spec)
}

func (r *TestResult) UnmarshalJSON(data []byte) error {
	var spec ResultSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	r.spec = spec
	return nil
}
