package domain

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// TestFunc is a plain test: no parameters, no return value.
type TestFunc func()

// IteratedTestFunc is run once per data item produced by its DataSetupFunc.
type IteratedTestFunc func(data any)

// DataSetupFunc registers data items for an iterated test.
type DataSetupFunc func()

// HookFunc is a setup, teardown, startup, shutdown, warmup or cooldown hook.
type HookFunc func()

// Attributes are free-form metadata attached to a test.
type Attributes map[string]string

func (a Attributes) Description() string { return a["description"] }
func (a Attributes) Priority() string    { return a["priority"] }

// Bugs returns the bug IDs listed in the "bug" attribute, which may hold
// several comma separated values.
func (a Attributes) Bugs() []string {
	raw := a["bug"]
	if raw == "" {
		return nil
	}
	var bugs []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			bugs = append(bugs, b)
		}
	}
	return bugs
}

// Keys returns the attribute names in byte order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Test is a single named check. It is either a plain test (Func set) or an
// iterated test (IteratedFunc and DataSetup set).
type Test struct {
	Name         string
	Func         TestFunc
	IteratedFunc IteratedTestFunc
	DataSetup    DataSetupFunc
	Attributes   Attributes

	mu         sync.Mutex
	elapsed    time.Duration
	assertions int
}

// NewTest creates a plain test.
func NewTest(name string, fn TestFunc) *Test {
	return &Test{Name: name, Func: fn, Attributes: Attributes{}}
}

// NewIteratedTest creates a test bound to the data produced by setup.
func NewIteratedTest(name string, fn IteratedTestFunc, setup DataSetupFunc) *Test {
	return &Test{Name: name, IteratedFunc: fn, DataSetup: setup, Attributes: Attributes{}}
}

// IsIterated reports whether the test runs once per data item.
func (t *Test) IsIterated() bool {
	return t.IteratedFunc != nil
}

// Runnable reports whether there is anything to invoke.
func (t *Test) Runnable() bool {
	return t.Func != nil || t.IteratedFunc != nil
}

func (t *Test) AddElapsed(d time.Duration) {
	t.mu.Lock()
	t.elapsed += d
	t.mu.Unlock()
}

func (t *Test) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

func (t *Test) AddAssertion() {
	t.mu.Lock()
	t.assertions++
	t.mu.Unlock()
}

func (t *Test) Assertions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assertions
}

// TestData is one named item of an iterated test's data set.
type TestData struct {
	Name  string
	Value any
}
