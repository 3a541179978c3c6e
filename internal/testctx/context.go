// Package testctx holds the per-invocation state of a running test and the
// registry that lets assertions find it without threading it through user
// code.
package testctx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocut/internal/domain"
	"gocut/internal/logging"
	"gocut/internal/process"
	"gocut/internal/unwind"
)

// Reporter receives what a Context records.
type Reporter interface {
	ReportResult(c *Context, r domain.TestResult)
	ReportAssertion(c *Context)
}

// Message is the text and source position attached to a result.
type Message struct {
	System   string
	User     string
	Location domain.Location
}

// Options identify the test a Context runs for.
type Options struct {
	Suite       *domain.TestSuite
	Case        *domain.TestCase
	Test        *domain.Test
	Data        *domain.TestData
	Reporter    Reporter
	MultiThread bool
}

// Context is the state of one test invocation.
type Context struct {
	suite       *domain.TestSuite
	tcase       *domain.TestCase
	test        *domain.Test
	data        *domain.TestData
	reporter    Reporter
	multiThread bool
	stack       *unwind.Stack

	mu         sync.Mutex
	failed     bool
	critical   domain.Status
	assertions int
	userData   any
	dataList   []domain.TestData
	processes  map[int]*process.Process
}

func New(opts Options) *Context {
	return &Context{
		suite:       opts.Suite,
		tcase:       opts.Case,
		test:        opts.Test,
		data:        opts.Data,
		reporter:    opts.Reporter,
		multiThread: opts.MultiThread,
		stack:       unwind.NewStack(),
		processes:   make(map[int]*process.Process),
	}
}

func (c *Context) Suite() *domain.TestSuite { return c.suite }
func (c *Context) Case() *domain.TestCase   { return c.tcase }
func (c *Context) Test() *domain.Test       { return c.test }
func (c *Context) Data() *domain.TestData   { return c.data }
func (c *Context) Stack() *unwind.Stack     { return c.stack }
func (c *Context) MultiThread() bool        { return c.multiThread }

// Failed reports whether a pending, failure or error was registered.
func (c *Context) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Assertions is the number of assertions passed in this invocation.
func (c *Context) Assertions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assertions
}

func (c *Context) SetUserData(v any) {
	c.mu.Lock()
	c.userData = v
	c.mu.Unlock()
}

func (c *Context) UserData() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userData
}

// AddData records one item of an iterated test's data set. It is called
// from a data setup function.
func (c *Context) AddData(name string, value any) {
	c.mu.Lock()
	c.dataList = append(c.dataList, domain.TestData{Name: name, Value: value})
	c.mu.Unlock()
}

// DataList returns the items recorded with AddData.
func (c *Context) DataList() []domain.TestData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.TestData(nil), c.dataList...)
}

func (c *Context) PassAssertion() {
	c.mu.Lock()
	c.assertions++
	c.mu.Unlock()
	if c.test != nil {
		c.test.AddAssertion()
	}
	if c.reporter != nil {
		c.reporter.ReportAssertion(c)
	}
}

// NewResult builds a result identified by this context's test.
func (c *Context) NewResult(status domain.Status, msg Message) domain.TestResult {
	spec := domain.ResultSpec{
		Status:      status,
		Message:     msg.System,
		UserMessage: msg.User,
		Location:    msg.Location,
	}
	if c.suite != nil {
		spec.SuiteName = c.suite.Name
	}
	if c.tcase != nil {
		spec.CaseName = c.tcase.Name
	}
	if c.test != nil {
		spec.TestName = c.test.Name
	}
	if c.data != nil {
		spec.DataName = c.data.Name
	}
	return domain.NewTestResult(spec)
}

// Register records a result without leaving the test. Only the first
// pending, failure or error of an invocation is terminal; later ones are
// kept as notifications so every test ends with a single outcome.
func (c *Context) Register(status domain.Status, msg Message) domain.TestResult {
	return c.RegisterResult(c.NewResult(status, msg))
}

// RegisterResult records a result built elsewhere.
func (c *Context) RegisterResult(r domain.TestResult) domain.TestResult {
	c.mu.Lock()
	if r.IsCritical() {
		if c.failed {
			spec := withSystemPrefix(r.Spec(), fmt.Sprintf("%s after %s", r.Status(), c.critical))
			spec.Status = domain.StatusNotification
			r = domain.NewTestResult(spec)
		} else {
			c.failed = true
			c.critical = r.Status()
		}
	}
	c.mu.Unlock()

	if c.reporter != nil {
		c.reporter.ReportResult(c, r)
	}
	return r
}

func withSystemPrefix(spec domain.ResultSpec, prefix string) domain.ResultSpec {
	if spec.Message == "" {
		spec.Message = prefix
	} else {
		spec.Message = prefix + ": " + spec.Message
	}
	return spec
}

// Terminate registers a result and leaves the test.
func (c *Context) Terminate(status domain.Status, msg Message) {
	r := c.Register(status, msg)
	c.stack.Jump(r)
}

func (c *Context) Fail(msg Message)   { c.Terminate(domain.StatusFailure, msg) }
func (c *Context) Error(msg Message)  { c.Terminate(domain.StatusError, msg) }
func (c *Context) Pend(msg Message)   { c.Terminate(domain.StatusPending, msg) }
func (c *Context) Omit(msg Message)   { c.Terminate(domain.StatusOmission, msg) }
func (c *Context) Notify(msg Message) { c.Register(domain.StatusNotification, msg) }

// Invoke runs fn as this context's test body on a goroutine of its own,
// with c as that goroutine's current context. A panic that is not a jump
// is registered as an error carrying the panic's type and message, and so
// is a body that leaves through runtime.Goexit.
func (c *Context) Invoke(fn func()) unwind.Outcome {
	out := c.stack.Run(func() {
		Push(c)
		defer Pop()
		fn()
	})
	switch {
	case out.Panic == nil:
	case out.Panic.Goexit():
		c.Register(domain.StatusError, Message{
			System: "test goroutine exited through runtime.Goexit",
		})
	default:
		c.Register(domain.StatusError, Message{
			System: fmt.Sprintf("unhandled panic: %s: %s", out.Panic.Type, out.Panic.Message),
			User:   firstFrames(out.Panic.Stack, 12),
		})
	}
	return out
}

func firstFrames(stack string, lines int) string {
	parts := strings.SplitN(stack, "\n", lines+1)
	if len(parts) > lines {
		parts = parts[:lines]
	}
	return strings.Join(parts, "\n")
}

// Fork runs the fork entry registered under name in a child process and
// returns its pid.
func (c *Context) Fork(name string, args ...string) (int, error) {
	p, err := process.Spawn(context.Background(), forkEntryPrefix+name, args, process.Options{ResultPipe: true})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.processes[p.Pid()] = p
	c.mu.Unlock()
	return p.Pid(), nil
}

func (c *Context) lookupProcess(pid int) (*process.Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.processes[pid]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", process.ErrUnknownProcess, pid)
	}
	return p, nil
}

// StdoutMessage is what the forked child wrote to stdout so far.
func (c *Context) StdoutMessage(pid int) string {
	p, err := c.lookupProcess(pid)
	if err != nil {
		return ""
	}
	return p.Stdout()
}

func (c *Context) StderrMessage(pid int) string {
	p, err := c.lookupProcess(pid)
	if err != nil {
		return ""
	}
	return p.Stderr()
}

// WaitProcess waits for a forked child and returns its exit status.
// Pending, failure, error and notification results raised in the child are
// registered on this context as if raised here.
func (c *Context) WaitProcess(pid int, timeout time.Duration) (int, error) {
	p, err := c.lookupProcess(pid)
	if err != nil {
		return -1, err
	}
	code, err := p.Wait(timeout)
	if err != nil {
		return code, err
	}

	results, err := DecodeResults(p.Results())
	if err != nil {
		logging.Warn("TestContext", "discarding malformed child results from pid %d: %v", pid, err)
	}
	for _, r := range results {
		if r.Status() == domain.StatusSuccess || r.Status() == domain.StatusOmission {
			continue
		}
		c.Adopt(r)
	}
	return code, nil
}

// Adopt registers a result raised elsewhere, typically in a child process,
// as if this context had raised it. Status, messages, location, timestamp
// and captured output are kept; the identity becomes this context's.
func (c *Context) Adopt(r domain.TestResult) domain.TestResult {
	own := c.NewResult(r.Status(), Message{}).Spec()
	spec := r.Spec()
	spec.SuiteName = own.SuiteName
	spec.CaseName = own.CaseName
	spec.TestName = own.TestName
	spec.DataName = own.DataName
	return c.RegisterResult(domain.NewTestResult(spec))
}

// Release drops the child process handles. Children still running are
// left alone.
func (c *Context) Release() {
	c.mu.Lock()
	c.processes = make(map[int]*process.Process)
	c.mu.Unlock()
}

// DecodeResults parses the JSON lines a child wrote to its result pipe.
func DecodeResults(data []byte) ([]domain.TestResult, error) {
	var results []domain.TestResult
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r domain.TestResult
		if err := json.Unmarshal(line, &r); err != nil {
			return results, fmt.Errorf("decoding child result: %w", err)
		}
		results = append(results, r)
	}
	return results, sc.Err()
}
