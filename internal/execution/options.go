package execution

import (
	"fmt"
	"strings"
	"time"
)

// Order is the traversal order of test cases and tests.
type Order int

const (
	OrderNone Order = iota
	OrderAscending
	OrderDescending
)

func (o Order) String() string {
	switch o {
	case OrderAscending:
		return "name"
	case OrderDescending:
		return "name-desc"
	}
	return "none"
}

// ParseOrder accepts none, name/asc and name-desc/desc.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return OrderNone, nil
	case "name", "asc", "ascending":
		return OrderAscending, nil
	case "name-desc", "desc", "descending":
		return OrderDescending, nil
	}
	return OrderNone, fmt.Errorf("unknown test order %q", s)
}

// Isolation selects where a test body runs.
type Isolation int

const (
	// IsolationNone runs tests in the runner's process.
	IsolationNone Isolation = iota
	// IsolationFork runs every test in its own child process.
	IsolationFork
)

func (i Isolation) String() string {
	if i == IsolationFork {
		return "fork"
	}
	return "none"
}

func ParseIsolation(s string) (Isolation, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return IsolationNone, nil
	case "fork", "process":
		return IsolationFork, nil
	}
	return IsolationNone, fmt.Errorf("unknown isolation mode %q", s)
}

// DefaultForkTimeout bounds the wait for a forked test.
const DefaultForkTimeout = 5 * time.Minute

// Options configure one run. They are serialised to child processes, so
// every field must survive a JSON round trip.
type Options struct {
	SuiteName           string        `json:"suite_name,omitempty"`
	TestDirectory       string        `json:"test_directory,omitempty"`
	SourceDirectory     string        `json:"source_directory,omitempty"`
	ModuleSuffix        string        `json:"module_suffix,omitempty"`
	ExcludeDirectories  []string      `json:"exclude_directories,omitempty"`
	TargetTestNames     []string      `json:"target_test_names,omitempty"`
	TargetTestCaseNames []string      `json:"target_test_case_names,omitempty"`
	Order               Order         `json:"order,omitempty"`
	MaxThreads          int           `json:"max_threads,omitempty"`
	Isolation           Isolation     `json:"isolation,omitempty"`
	ForkTimeout         time.Duration `json:"fork_timeout,omitempty"`
	FailFast            bool          `json:"fail_fast,omitempty"`
	// ShardTestCaseNames, when non-nil, is the exact set of cases a
	// pipeline child runs. It replaces TargetTestCaseNames.
	ShardTestCaseNames []string `json:"shard_test_case_names"`
	// Processes > 0 runs the suite in that many child processes.
	Processes int `json:"processes,omitempty"`
	// SuiteSource names the registered source that builds the suite.
	SuiteSource string `json:"suite_source,omitempty"`
}

func (o Options) forkTimeout() time.Duration {
	if o.ForkTimeout <= 0 {
		return DefaultForkTimeout
	}
	return o.ForkTimeout
}

func (o Options) threads() int {
	if o.MaxThreads <= 0 {
		return 1
	}
	return o.MaxThreads
}
