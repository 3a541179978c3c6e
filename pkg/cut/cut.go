// Package cut is the API test code uses: assertions and the calls that end
// a test early. Every function works on the test currently running on the
// calling goroutine and panics with testctx.ErrNoContext outside a test.
//
// Most functions take an optional trailing message. A single func() string
// is evaluated lazily, only when the assertion fails; a string followed by
// arguments is a format; anything else is printed with fmt.Sprint.
package cut

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"

	"gocut/internal/domain"
	"gocut/internal/process"
	"gocut/internal/testctx"
)

// recorder satisfies assert.TestingT and keeps the last failure text.
type recorder struct {
	text string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.text = fmt.Sprintf(format, args...)
}

// failureText keeps what follows the "Error:" label of a testify report.
func (r *recorder) failureText() string {
	text := r.text
	if i := strings.Index(text, "Error:"); i >= 0 {
		text = text[i+len("Error:"):]
	}
	if i := strings.Index(text, "Messages:"); i >= 0 {
		text = text[:i]
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

func location(skip int) domain.Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return domain.Location{}
	}
	loc := domain.Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

func userMessage(c *testctx.Context, msg []any) string {
	if len(msg) == 0 {
		return ""
	}
	switch m := msg[0].(type) {
	case func() string:
		return c.Stack().EvalMessage(m)
	case string:
		if len(msg) > 1 {
			return fmt.Sprintf(m, msg[1:]...)
		}
		return m
	}
	return fmt.Sprint(msg...)
}

// check must be called directly by the exported assertion so the reported
// location is the test's call site.
func check(ok bool, rec *recorder, msg []any) bool {
	c := testctx.MustCurrent()
	if ok {
		c.PassAssertion()
		return true
	}
	c.Fail(testctx.Message{
		System:   rec.failureText(),
		User:     userMessage(c, msg),
		Location: location(2),
	})
	return false
}

func terminate(status domain.Status, msg []any) {
	c := testctx.MustCurrent()
	c.Terminate(status, testctx.Message{User: userMessage(c, msg), Location: location(2)})
}

func Assert(cond bool, msg ...any) bool {
	rec := &recorder{}
	return check(assert.True(rec, cond), rec, msg)
}

func AssertFalse(cond bool, msg ...any) bool {
	rec := &recorder{}
	return check(assert.False(rec, cond), rec, msg)
}

// AssertEqual compares with testify's ObjectsAreEqual: bytes.Equal for
// []byte, reflect.DeepEqual for everything else.
func AssertEqual(expected, actual any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Equal(rec, expected, actual), rec, msg)
}

func AssertNotEqual(expected, actual any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.NotEqual(rec, expected, actual), rec, msg)
}

// AssertEqualValues also accepts values of different types that convert to
// each other, such as int32(1) and int64(1).
func AssertEqualValues(expected, actual any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.EqualValues(rec, expected, actual), rec, msg)
}

func AssertInDelta(expected, actual, delta float64, msg ...any) bool {
	rec := &recorder{}
	return check(assert.InDelta(rec, expected, actual, delta), rec, msg)
}

func AssertNil(v any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Nil(rec, v), rec, msg)
}

func AssertNotNil(v any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.NotNil(rec, v), rec, msg)
}

func AssertNoError(err error, msg ...any) bool {
	rec := &recorder{}
	return check(assert.NoError(rec, err), rec, msg)
}

func AssertError(err error, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Error(rec, err), rec, msg)
}

func AssertErrorIs(err, target error, msg ...any) bool {
	rec := &recorder{}
	return check(assert.ErrorIs(rec, err, target), rec, msg)
}

// AssertContains works on strings, slices, arrays and map keys.
func AssertContains(container, element any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Contains(rec, container, element), rec, msg)
}

func AssertLen(object any, length int, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Len(rec, object, length), rec, msg)
}

func AssertEmpty(object any, msg ...any) bool {
	rec := &recorder{}
	return check(assert.Empty(rec, object), rec, msg)
}

// AssertPanics runs fn and passes when it panics.
func AssertPanics(fn func(), msg ...any) bool {
	rec := &recorder{}
	return check(assert.Panics(rec, fn), rec, msg)
}

// Fail ends the test with a failure.
func Fail(msg ...any) { terminate(domain.StatusFailure, msg) }

// Error ends the test with an error: something other than the code under
// test went wrong.
func Error(msg ...any) { terminate(domain.StatusError, msg) }

// Pend ends the test as pending, for tests that are not finished yet.
func Pend(msg ...any) { terminate(domain.StatusPending, msg) }

// Omit ends the test without running the rest of it. The test still
// counts as passed.
func Omit(msg ...any) { terminate(domain.StatusOmission, msg) }

// Notify records a notification and carries on.
func Notify(msg ...any) {
	c := testctx.MustCurrent()
	c.Notify(testctx.Message{User: userMessage(c, msg), Location: location(1)})
}

// AddData adds one item to the data set of an iterated test. Call it from
// the test's data setup function.
func AddData(name string, value any) {
	testctx.MustCurrent().AddData(name, value)
}

// SetUserData attaches a value to the current invocation.
func SetUserData(v any) { testctx.MustCurrent().SetUserData(v) }

func UserData() any { return testctx.MustCurrent().UserData() }

// RegisterFork makes fn runnable by Fork under name. Call it from an init
// function; the program's main must call process.Dispatch first thing.
func RegisterFork(name string, fn func()) {
	testctx.RegisterForkEntry(name, fn)
}

// Fork runs the function registered under name in a child process and
// returns its pid. Where processes cannot be spawned the test is omitted.
func Fork(name string, args ...string) int {
	c := testctx.MustCurrent()
	pid, err := c.Fork(name, args...)
	if errors.Is(err, process.ErrForkUnsupported) {
		c.Omit(testctx.Message{System: "fork is not supported on this platform", Location: location(1)})
	}
	if err != nil {
		c.Error(testctx.Message{System: fmt.Sprintf("fork %s: %v", name, err), Location: location(1)})
	}
	return pid
}

// WaitProcess waits for a forked child and returns its exit status. Results
// the child raised are reported as if raised by the calling test. A
// non-positive timeout waits forever.
func WaitProcess(pid int, timeout time.Duration) int {
	c := testctx.MustCurrent()
	code, err := c.WaitProcess(pid, timeout)
	if err != nil {
		c.Error(testctx.Message{System: fmt.Sprintf("waiting for pid %d: %v", pid, err), Location: location(1)})
	}
	return code
}

// StdoutMessage returns what the child wrote to stdout so far.
func StdoutMessage(pid int) string { return testctx.MustCurrent().StdoutMessage(pid) }

func StderrMessage(pid int) string { return testctx.MustCurrent().StderrMessage(pid) }
