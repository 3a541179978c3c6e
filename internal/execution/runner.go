package execution

import (
	"context"
	"fmt"
	"time"

	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/logging"
	"gocut/internal/testctx"
	"gocut/internal/unwind"
)

// TestRunner executes a loaded suite in the current process, or forks a
// child per test when Options.Isolation is IsolationFork.
type TestRunner struct {
	rc    *RunContext
	suite *domain.TestSuite
}

// NewTestRunner creates a new TestRunner
func NewTestRunner(rc *RunContext, suite *domain.TestSuite) *TestRunner {
	return &TestRunner{rc: rc, suite: suite}
}

func (r *TestRunner) Suite() *domain.TestSuite { return r.suite }

// Run executes the suite and reports whether it succeeded. The returned
// error is non-nil only when ctx was cancelled before every case ran.
func (r *TestRunner) Run(ctx context.Context) (bool, error) {
	rc := r.rc
	rc.setState(StateRunning)

	cases := sortCases(r.suite.Cases, rc.opts.Order)
	rc.Emit(event.Event{
		Kind:       event.ReadySuite,
		Suite:      r.suite,
		TotalCases: len(cases),
		TotalTests: r.suite.TestCount(),
	})
	rc.Emit(event.Event{Kind: event.StartSuite, Suite: r.suite})

	success := r.runSuiteHook(r.suite.Warmup)
	if success {
		success = r.runCases(ctx, cases)
	} else {
		logging.Warn("TestRunner", "warmup of suite %s failed, skipping all cases", r.suite.Name)
	}
	if !r.runSuiteHook(r.suite.Cooldown) {
		success = false
	}

	rc.Emit(event.Event{Kind: event.CompleteSuite, Suite: r.suite, Success: success && rc.Success()})
	rc.finish()
	return rc.Success(), ctx.Err()
}

func (r *TestRunner) runCases(ctx context.Context, cases []*domain.TestCase) bool {
	if threads := r.rc.opts.threads(); threads > 1 {
		pool := NewWorkerPool(threads, r.rc.opts.FailFast)
		pool.onPanic = r.casePanicked
		return pool.Execute(ctx, cases, r.runTestCase)
	}

	success := true
	for _, tc := range cases {
		if ctx.Err() != nil {
			return false
		}
		if !r.runTestCase(ctx, tc) {
			success = false
			if r.rc.opts.FailFast {
				break
			}
		}
	}
	return success
}

// casePanicked turns a panic that escaped every test context into an error
// result for the case.
func (r *TestRunner) casePanicked(tc *domain.TestCase, recovered any) {
	res := domain.NewTestResult(domain.ResultSpec{
		Status:    domain.StatusError,
		SuiteName: r.suite.Name,
		CaseName:  tc.Name,
		Message:   fmt.Sprintf("test case aborted by panic: %v", recovered),
	})
	r.rc.Emit(event.Event{Kind: event.Error, Suite: r.suite, Case: tc, Result: &res})
}

func (r *TestRunner) forked() bool {
	return r.rc.opts.Isolation == IsolationFork
}

func (r *TestRunner) runTestCase(ctx context.Context, tc *domain.TestCase) bool {
	r.rc.Emit(event.Event{Kind: event.StartCase, Suite: r.suite, Case: tc})

	// Forked children run startup and shutdown themselves so the state
	// they build lives in the process that runs the test.
	success := true
	if r.forked() || r.runCaseHook(tc, tc.Startup) {
		for _, t := range sortTests(tc.Tests, r.rc.opts.Order) {
			if ctx.Err() != nil {
				success = false
				break
			}
			if !r.runTest(ctx, tc, t) {
				success = false
			}
		}
	} else {
		logging.Warn("TestRunner", "startup of %s failed, skipping its tests", tc.Name)
		success = false
	}
	if !r.forked() && !r.runCaseHook(tc, tc.Shutdown) {
		success = false
	}

	r.rc.Emit(event.Event{Kind: event.CompleteCase, Suite: r.suite, Case: tc, Success: success})
	return success
}

func (r *TestRunner) runTest(ctx context.Context, tc *domain.TestCase, t *domain.Test) bool {
	if !t.Runnable() {
		logging.Debug("TestRunner", "%s/%s has nothing to run", tc.Name, t.Name)
		return true
	}
	if !t.IsIterated() {
		return r.runInvocation(ctx, tc, t, nil, -1)
	}

	r.rc.Emit(event.Event{Kind: event.StartTest, Suite: r.suite, Case: tc, Test: t})
	data, success := r.collectData(tc, t)
	for i := range data {
		if !r.runInvocation(ctx, tc, t, &data[i], i) {
			success = false
		}
	}
	r.rc.Emit(event.Event{Kind: event.CompleteTest, Suite: r.suite, Case: tc, Test: t, Success: success})
	return success
}

// collectData runs the data setup of an iterated test.
func (r *TestRunner) collectData(tc *domain.TestCase, t *domain.Test) ([]domain.TestData, bool) {
	c := r.newContext(tc, t, nil)
	testctx.Push(c)
	defer testctx.Pop()
	defer c.Release()

	if t.DataSetup != nil {
		c.Invoke(t.DataSetup)
	}
	return c.DataList(), !c.Failed()
}

// runInvocation runs one plain test or one data item of an iterated test.
func (r *TestRunner) runInvocation(ctx context.Context, tc *domain.TestCase, t *domain.Test, data *domain.TestData, index int) bool {
	start, complete := event.StartTest, event.CompleteTest
	if data != nil {
		start, complete = event.StartIteratedTest, event.CompleteIteratedTest
	}
	r.rc.Emit(event.Event{Kind: start, Suite: r.suite, Case: tc, Test: t, Data: data})

	var success bool
	if r.forked() {
		success = r.forkInvocation(ctx, tc, t, data, index)
	} else {
		success = r.invoke(tc, t, data)
	}

	r.rc.Emit(event.Event{Kind: complete, Suite: r.suite, Case: tc, Test: t, Data: data, Success: success})
	return success
}

// invoke runs setup, the body and teardown in this process. The body is
// skipped when setup left early; teardown always runs.
func (r *TestRunner) invoke(tc *domain.TestCase, t *domain.Test, data *domain.TestData) bool {
	c := r.newContext(tc, t, data)
	testctx.Push(c)
	defer testctx.Pop()
	defer c.Release()

	started := time.Now()
	if completed(c, tc.Setup) {
		if data != nil {
			value := data.Value
			c.Invoke(func() { t.IteratedFunc(value) })
		} else {
			c.Invoke(t.Func)
		}
	}
	completed(c, tc.Teardown)
	elapsed := time.Since(started)
	t.AddElapsed(elapsed)

	if c.Failed() {
		return false
	}
	res := c.NewResult(domain.StatusSuccess, testctx.Message{}).WithElapsed(elapsed)
	c.RegisterResult(res)
	return true
}

// completed runs hook under c and reports whether it returned normally.
func completed(c *testctx.Context, hook domain.HookFunc) bool {
	if hook == nil {
		return true
	}
	out := c.Invoke(hook)
	return !out.Jumped && !out.Delegated && out.Panic == nil
}

// runCaseHook runs a startup or shutdown hook outside any test.
func (r *TestRunner) runCaseHook(tc *domain.TestCase, hook domain.HookFunc) bool {
	if hook == nil {
		return true
	}
	c := r.newContext(tc, nil, nil)
	testctx.Push(c)
	defer testctx.Pop()
	defer c.Release()

	c.Invoke(hook)
	return !c.Failed()
}

func (r *TestRunner) runSuiteHook(hook domain.HookFunc) bool {
	return r.runCaseHook(nil, hook)
}

func (r *TestRunner) newContext(tc *domain.TestCase, t *domain.Test, data *domain.TestData) *testctx.Context {
	c := testctx.New(testctx.Options{
		Suite:       r.suite,
		Case:        tc,
		Test:        t,
		Data:        data,
		Reporter:    reporter{rc: r.rc},
		MultiThread: r.rc.multiThread(),
	})
	c.Stack().SetParentHandler(func(u *unwind.Unwind) {
		logging.Debug("TestRunner", "jump from a goroutine outside %s: %v", c.NewResult(domain.StatusSuccess, testctx.Message{}).FullName(), u.Value)
	})
	return c
}

// reporter turns what a test context records into run events.
type reporter struct {
	rc *RunContext
}

func (p reporter) ReportResult(c *testctx.Context, res domain.TestResult) {
	p.rc.Emit(event.Event{
		Kind:   event.KindForStatus(res.Status()),
		Suite:  c.Suite(),
		Case:   c.Case(),
		Test:   c.Test(),
		Data:   c.Data(),
		Result: &res,
	})
}

func (p reporter) ReportAssertion(c *testctx.Context) {
	p.rc.Emit(event.Event{
		Kind:  event.PassAssertion,
		Suite: c.Suite(),
		Case:  c.Case(),
		Test:  c.Test(),
		Data:  c.Data(),
	})
}
