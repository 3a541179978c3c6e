package testctx

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/domain"
	"gocut/internal/process"
)

func init() {
	RegisterForkEntry("echo", func() {
		fmt.Fprint(os.Stdout, "A")
		fmt.Fprint(os.Stderr, "B")
	})
	RegisterForkEntry("fail", func() {
		MustCurrent().Fail(Message{System: "child failed", Location: domain.Location{File: "child.go", Line: 7}})
	})
}

func TestMain(m *testing.M) {
	process.Dispatch()
	os.Exit(m.Run())
}

type recorder struct {
	mu         sync.Mutex
	results    []domain.TestResult
	assertions int
}

func (r *recorder) ReportResult(_ *Context, res domain.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) ReportAssertion(*Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertions++
}

func (r *recorder) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Status
	for _, res := range r.results {
		out = append(out, res.Status())
	}
	return out
}

func newContext(rec *recorder) *Context {
	tc := domain.NewTestCase("math")
	test := domain.NewTest("test_add", nil)
	tc.AddTest(test)
	return New(Options{Case: tc, Test: test, Reporter: rec})
}

func TestProvider_PushPopCurrent(t *testing.T) {
	restore := SetProvider(NewGoroutineProvider())
	defer restore()

	assert.Nil(t, Current())
	outer := New(Options{})
	inner := New(Options{})

	Push(outer)
	Push(inner)
	assert.Same(t, inner, Current())
	assert.Same(t, inner, Pop())
	assert.Same(t, outer, Current())
	assert.Same(t, outer, Pop())
	assert.Nil(t, Pop())
}

func TestProvider_GoroutinesAreIsolated(t *testing.T) {
	restore := SetProvider(NewGoroutineProvider())
	defer restore()

	mine := New(Options{})
	Push(mine)
	defer Pop()

	var other *Context
	done := make(chan struct{})
	go func() {
		defer close(done)
		other = Current()
	}()
	<-done

	assert.Nil(t, other)
	assert.Same(t, mine, Current())
}

func TestMustCurrent_OutsideTest(t *testing.T) {
	restore := SetProvider(NewGoroutineProvider())
	defer restore()

	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrNoContext))
	}()
	MustCurrent()
}

func TestFail_LeavesTestWithOneFailure(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)
	after := false

	out := c.Invoke(func() {
		c.PassAssertion()
		c.Fail(Message{System: "expected 1, got 2"})
		after = true
	})

	assert.True(t, out.Jumped)
	assert.False(t, after)
	assert.True(t, c.Failed())
	assert.Equal(t, []domain.Status{domain.StatusFailure}, rec.statuses())
	assert.Equal(t, "math", rec.results[0].CaseName())
	assert.Equal(t, "test_add", rec.results[0].TestName())
	assert.Equal(t, 1, c.Assertions())
	assert.Equal(t, 1, rec.assertions)
}

func TestNotify_DoesNotLeave(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)
	after := false

	c.Invoke(func() {
		c.Notify(Message{System: "fyi"})
		after = true
	})

	assert.True(t, after)
	assert.False(t, c.Failed())
	assert.Equal(t, []domain.Status{domain.StatusNotification}, rec.statuses())
}

func TestOmit_IsNotAFailure(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)

	out := c.Invoke(func() { c.Omit(Message{System: "no network"}) })

	assert.True(t, out.Jumped)
	assert.False(t, c.Failed())
}

func TestRegister_SecondCriticalBecomesNotification(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)

	c.Register(domain.StatusFailure, Message{System: "first"})
	second := c.Register(domain.StatusError, Message{System: "second"})

	assert.Equal(t, domain.StatusNotification, second.Status())
	assert.Equal(t, "error after failure: second", second.SystemMessage())
	assert.Equal(t, []domain.Status{domain.StatusFailure, domain.StatusNotification}, rec.statuses())
}

func TestInvoke_PanicBecomesError(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)

	c.Invoke(func() { panic(errors.New("nil map")) })

	require.Len(t, rec.results, 1)
	assert.Equal(t, domain.StatusError, rec.results[0].Status())
	assert.Contains(t, rec.results[0].SystemMessage(), "*errors.errorString: nil map")
}

func TestInvoke_GoexitBecomesError(t *testing.T) {
	rec := &recorder{}
	c := newContext(rec)

	out := c.Invoke(func() { runtime.Goexit() })

	require.NotNil(t, out.Panic)
	assert.True(t, c.Failed())
	require.Len(t, rec.results, 1)
	assert.Equal(t, domain.StatusError, rec.results[0].Status())
	assert.Contains(t, rec.results[0].SystemMessage(), "runtime.Goexit")
}

func TestInvoke_BodySeesContext(t *testing.T) {
	c := newContext(&recorder{})
	var seen *Context

	c.Invoke(func() { seen = Current() })

	assert.Same(t, c, seen)
}

func TestAddData(t *testing.T) {
	c := New(Options{})
	c.AddData("one", 1)
	c.AddData("two", 2)

	data := c.DataList()
	require.Len(t, data, 2)
	assert.Equal(t, "two", data[1].Name)
	assert.Equal(t, 2, data[1].Value)
}

func TestFork_CapturesChildOutput(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	c := newContext(&recorder{})

	pid, err := c.Fork("echo")
	require.NoError(t, err)
	code, err := c.WaitProcess(pid, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, code)
	assert.Equal(t, "A", c.StdoutMessage(pid))
	assert.Equal(t, "B", c.StderrMessage(pid))
}

func TestFork_ChildFailureIsReportedInParent(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	rec := &recorder{}
	c := newContext(rec)

	pid, err := c.Fork("fail")
	require.NoError(t, err)
	code, err := c.WaitProcess(pid, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, code)
	require.Len(t, rec.results, 1)
	res := rec.results[0]
	assert.Equal(t, domain.StatusFailure, res.Status())
	assert.Equal(t, "child failed", res.SystemMessage())
	assert.Equal(t, "test_add", res.TestName())
	assert.Equal(t, 7, res.Location().Line)
	assert.True(t, c.Failed())
}

func TestWaitProcess_UnknownPid(t *testing.T) {
	c := New(Options{})
	_, err := c.WaitProcess(424242, time.Second)
	assert.True(t, errors.Is(err, process.ErrUnknownProcess))
}

func TestDecodeResults(t *testing.T) {
	data := []byte(`{"status":"failure","test":"a","message":"m","location":{},"timestamp":"2024-01-02T03:04:05Z"}` + "\n\n" +
		`{"status":"notification","test":"a","location":{},"timestamp":"2024-01-02T03:04:05Z"}` + "\n")

	results, err := DecodeResults(data)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.StatusFailure, results[0].Status())
	assert.Equal(t, domain.StatusNotification, results[1].Status())

	_, err = DecodeResults([]byte("{not json}\n"))
	assert.Error(t, err)
}
