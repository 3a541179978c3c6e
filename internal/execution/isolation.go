package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/logging"
	"gocut/internal/parser"
	"gocut/internal/process"
	"gocut/internal/testctx"
)

// testEntry is the child entry that runs a single forked test.
const testEntry = "gocut.test"

func init() {
	process.Register(testEntry, runForkedTest)
}

// forkRequest tells a child which test to run. Data is the index of the
// item in the iterated test's data set, or -1.
type forkRequest struct {
	Options Options `json:"options"`
	Case    string  `json:"case"`
	Test    string  `json:"test"`
	Data    int     `json:"data"`
}

// forkInvocation runs one invocation in a child and replays what the child
// reported. A child that dies by a signal or exits without reporting an
// outcome is a crash; a child that outlives the fork timeout is an error
// and is left running.
func (r *TestRunner) forkInvocation(ctx context.Context, tc *domain.TestCase, t *domain.Test, data *domain.TestData, index int) bool {
	c := r.newContext(tc, t, data)
	defer c.Release()

	req := forkRequest{Options: r.rc.opts, Case: tc.Name, Test: t.Name, Data: index}
	req.Options.Isolation = IsolationNone
	req.Options.MaxThreads = 1
	req.Options.Processes = 0
	payload, err := json.Marshal(req)
	if err != nil {
		c.Register(domain.StatusError, testctx.Message{System: fmt.Sprintf("encoding fork request: %v", err)})
		return false
	}

	started := time.Now()
	p, err := process.Spawn(ctx, testEntry, []string{"-request", string(payload)}, process.Options{ResultPipe: true})
	if errors.Is(err, process.ErrForkUnsupported) {
		c.Register(domain.StatusOmission, testctx.Message{System: "process isolation unsupported on this platform"})
		c.RegisterResult(c.NewResult(domain.StatusSuccess, testctx.Message{}))
		return true
	}
	if err != nil {
		c.Register(domain.StatusError, testctx.Message{System: fmt.Sprintf("spawning test process: %v", err)})
		return false
	}

	timeout := r.rc.opts.forkTimeout()
	if _, err := p.Wait(timeout); errors.Is(err, process.ErrTimeout) {
		res := c.NewResult(domain.StatusError, testctx.Message{
			System: fmt.Sprintf("test process %d did not finish within %s", p.Pid(), timeout),
		})
		c.RegisterResult(res.WithOutput(p.Stdout(), p.Stderr()))
		return false
	} else if err != nil {
		logging.Warn("TestRunner", "waiting for test process %d: %v", p.Pid(), err)
	}
	elapsed := time.Since(started)
	t.AddElapsed(elapsed)

	concluded := r.replay(c, p)
	if p.Signaled() || !concluded {
		res := c.NewResult(domain.StatusCrash, testctx.Message{
			System: fmt.Sprintf("test process %d crashed: %s", p.Pid(), p.State()),
		})
		res = c.RegisterResult(res.WithOutput(p.Stdout(), p.Stderr()))
		r.rc.Emit(event.Event{Kind: event.Crashed, Suite: r.suite, Case: tc, Test: t, Data: data, Result: &res})
		return false
	}
	if c.Failed() {
		return false
	}
	c.RegisterResult(c.NewResult(domain.StatusSuccess, testctx.Message{}).WithElapsed(elapsed))
	return true
}

// replay registers the child's results on c and reports whether the child
// reached an outcome. Success results are not replayed; the caller emits
// its own with the parent's timing.
func (r *TestRunner) replay(c *testctx.Context, p *process.Process) (concluded bool) {
	err := parser.NewStreamParser(r.suite).Parse(bytes.NewReader(p.Results()), func(e event.Event) {
		switch {
		case e.Kind == event.PassAssertion:
			c.PassAssertion()
		case e.Kind == event.Success:
			concluded = true
		case e.Kind.IsResult() && e.Result != nil:
			res := *e.Result
			if res.IsCritical() {
				concluded = true
				res = res.WithOutput(p.Stdout(), p.Stderr())
			}
			c.Adopt(res)
		}
	})
	if err != nil {
		logging.Warn("TestRunner", "reading results of test process %d: %v", p.Pid(), err)
	}
	return concluded
}

// runForkedTest is the child side of forkInvocation.
func runForkedTest(args []string) int {
	fs := flag.NewFlagSet(testEntry, flag.ContinueOnError)
	raw := fs.String("request", "", "JSON encoded fork request")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var req forkRequest
	if err := json.Unmarshal([]byte(*raw), &req); err != nil {
		fmt.Fprintf(os.Stderr, "gocut: bad fork request: %v\n", err)
		return 2
	}

	var out io.Writer = io.Discard
	if w := process.ResultPipe(); w != nil {
		defer w.Close()
		out = w
	}

	rc := NewRunContext(req.Options)
	enc := parser.NewEncoder(out)
	rc.Subscribe(func(e event.Event) {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintf(os.Stderr, "gocut: writing result: %v\n", err)
		}
	})

	suite, err := rc.LoadSuite()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gocut: loading suite: %v\n", err)
		return 2
	}
	tc := suite.Case(req.Case)
	if tc == nil || tc.Test(req.Test) == nil {
		fmt.Fprintf(os.Stderr, "gocut: %s/%s not found in suite\n", req.Case, req.Test)
		return 2
	}

	r := NewTestRunner(rc, suite)
	if !r.runSingle(tc, tc.Test(req.Test), req.Data) {
		return 1
	}
	return 0
}

// runSingle runs one invocation with the case's startup and shutdown
// around it.
func (r *TestRunner) runSingle(tc *domain.TestCase, t *domain.Test, index int) bool {
	r.rc.setState(StateRunning)
	defer r.rc.finish()

	success := false
	if r.runCaseHook(tc, tc.Startup) {
		if !t.IsIterated() {
			success = r.invoke(tc, t, nil)
		} else if data, ok := r.collectData(tc, t); index >= 0 && index < len(data) {
			success = r.invoke(tc, t, &data[index]) && ok
		} else {
			c := r.newContext(tc, t, nil)
			c.Register(domain.StatusError, testctx.Message{System: fmt.Sprintf("data item %d not produced by data setup", index)})
		}
	}
	if !r.runCaseHook(tc, tc.Shutdown) {
		success = false
	}
	return success
}
