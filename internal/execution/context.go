// Package execution drives a test suite through its lifecycle and reports
// every step as an event.
package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gocut/internal/discovery"
	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/logging"
)

// State is the lifecycle of a run.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateAggregating
	StateDone
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateCrashed:
		return "crashed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RunContext holds the configuration and the live state of one run. Events
// emitted on it are counted, published to its subscribers and forwarded to
// the parent when one is set.
type RunContext struct {
	id      string
	opts    Options
	loader  *discovery.Loader
	subject event.Subject[event.Event]

	mu        sync.Mutex
	parent    *RunContext
	state     State
	summary   domain.Summary
	results   []domain.TestResult
	crashed   bool
	startedAt time.Time
}

func NewRunContext(opts Options) *RunContext {
	suffix := opts.ModuleSuffix
	if suffix == "" {
		suffix = discovery.DefaultModuleSuffix
	}
	return &RunContext{
		id:     uuid.NewString(),
		opts:   opts,
		loader: discovery.NewLoader(discovery.WithSuffix(suffix)),
	}
}

func (rc *RunContext) ID() string                           { return rc.id }
func (rc *RunContext) Options() Options                     { return rc.opts }
func (rc *RunContext) Loader() *discovery.Loader            { return rc.loader }
func (rc *RunContext) multiThread() bool                    { return rc.opts.threads() > 1 }
func (rc *RunContext) Subject() *event.Subject[event.Event] { return &rc.subject }

// Subscribe registers a listener for this run's events.
func (rc *RunContext) Subscribe(fn func(event.Event)) (unsubscribe func()) {
	return rc.subject.Subscribe(fn)
}

// SetParent makes rc forward every event to parent, which re-emits it as
// its own.
func (rc *RunContext) SetParent(parent *RunContext) {
	rc.mu.Lock()
	rc.parent = parent
	rc.mu.Unlock()
}

func (rc *RunContext) State() State {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

func (rc *RunContext) setState(s State) {
	rc.mu.Lock()
	prev := rc.state
	rc.state = s
	if s == StateRunning && rc.startedAt.IsZero() {
		rc.startedAt = time.Now()
	}
	if s == StateDone || s == StateCrashed {
		rc.summary.Elapsed = time.Since(rc.startedAt)
	}
	rc.mu.Unlock()
	logging.Debug("RunContext", "run %s: %s -> %s", rc.id, prev, s)
}

// finish moves to Done, or Crashed when a crash was seen.
func (rc *RunContext) finish() {
	rc.setState(StateAggregating)
	if rc.Crashed() {
		rc.setState(StateCrashed)
		return
	}
	rc.setState(StateDone)
}

func (rc *RunContext) Summary() domain.Summary {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.summary
}

// Results returns every result emitted so far, in emission order.
func (rc *RunContext) Results() []domain.TestResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]domain.TestResult(nil), rc.results...)
}

func (rc *RunContext) Crashed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.crashed
}

// Success reports whether the run had no failure, error or crash.
func (rc *RunContext) Success() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return !rc.crashed && rc.summary.Success()
}

// Report snapshots the run for storage.
func (rc *RunContext) Report() domain.RunReport {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return domain.RunReport{
		RunID:     rc.id,
		Suite:     rc.opts.SuiteName,
		Directory: rc.opts.TestDirectory,
		StartedAt: rc.startedAt,
		Crashed:   rc.crashed,
		Summary:   rc.summary,
		Results:   append([]domain.TestResult(nil), rc.results...),
	}
}

// Emit counts e, publishes it to subscribers and forwards it to the parent.
func (rc *RunContext) Emit(e event.Event) {
	if e.RunID == "" {
		e.RunID = rc.id
	}
	if e.Source == "" {
		e.Source = rc.id
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	rc.mu.Lock()
	rc.count(e)
	parent := rc.parent
	rc.mu.Unlock()

	rc.subject.Emit(e)

	if parent != nil {
		e.Source = parent.id
		parent.Emit(e)
	}
}

// count must be called with rc.mu held.
func (rc *RunContext) count(e event.Event) {
	switch {
	case e.Kind == event.StartCase:
		rc.summary.Cases++
	case e.Kind == event.StartTest && (e.Test == nil || !e.Test.IsIterated()):
		rc.summary.Tests++
	case e.Kind == event.StartIteratedTest:
		rc.summary.Tests++
	case e.Kind == event.PassAssertion:
		rc.summary.Assertions++
	case e.Kind == event.Crashed:
		rc.crashed = true
	case e.Kind.IsResult() && e.Result != nil:
		rc.summary.Add(e.Result.Status())
		rc.results = append(rc.results, *e.Result)
		if e.Result.Status() == domain.StatusCrash {
			rc.crashed = true
		}
	}
}
