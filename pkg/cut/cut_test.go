package cut

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/domain"
	"gocut/internal/process"
	"gocut/internal/testctx"
)

func init() {
	RegisterFork("print", func() {
		fmt.Fprint(os.Stdout, "out")
		fmt.Fprint(os.Stderr, "err")
	})
	RegisterFork("assert", func() {
		AssertEqual(1, 2, "child check")
	})
}

func TestMain(m *testing.M) {
	process.Dispatch()
	os.Exit(m.Run())
}

type collector struct {
	mu         sync.Mutex
	results    []domain.TestResult
	assertions int
}

func (c *collector) ReportResult(_ *testctx.Context, r domain.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) ReportAssertion(*testctx.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assertions++
}

// run invokes body as test_body of case sample and returns what it
// reported.
func run(t *testing.T, body func()) *collector {
	t.Helper()
	col := &collector{}
	tc := domain.NewTestCase("sample")
	test := domain.NewTest("test_body", body)
	tc.AddTest(test)
	c := testctx.New(testctx.Options{Case: tc, Test: test, Reporter: col})
	testctx.Push(c)
	defer testctx.Pop()
	c.Invoke(body)
	return col
}

func TestAssertions_Pass(t *testing.T) {
	col := run(t, func() {
		Assert(true)
		AssertFalse(false)
		AssertEqual([]byte("abc"), []byte("abc"))
		AssertNotEqual(1, 2)
		AssertEqualValues(int32(7), int64(7))
		AssertInDelta(1.0, 1.05, 0.1)
		AssertNil(nil)
		AssertNotNil(&struct{}{})
		AssertNoError(nil)
		AssertError(errors.New("boom"))
		AssertErrorIs(fmt.Errorf("wrap: %w", os.ErrNotExist), os.ErrNotExist)
		AssertContains("haystack", "st")
		AssertLen([]int{1, 2, 3}, 3)
		AssertEmpty("")
		AssertPanics(func() { panic("x") })
	})

	assert.Empty(t, col.results)
	assert.Equal(t, 15, col.assertions)
}

func TestAssertEqual_FailureStopsTest(t *testing.T) {
	reached := false
	col := run(t, func() {
		AssertEqual(1, 2, "numbers %s", "differ")
		reached = true
	})

	assert.False(t, reached)
	require.Len(t, col.results, 1)
	r := col.results[0]
	assert.Equal(t, domain.StatusFailure, r.Status())
	assert.Equal(t, "numbers differ", r.UserMessage())
	assert.Contains(t, r.SystemMessage(), "Not equal")
	assert.Equal(t, "sample", r.CaseName())
	assert.Equal(t, "test_body", r.TestName())
	assert.True(t, strings.HasSuffix(r.Location().File, "cut_test.go"), r.Location().File)
	assert.Contains(t, r.Location().Function, "TestAssertEqual_FailureStopsTest")
}

func TestLazyMessage_OnlyEvaluatedOnFailure(t *testing.T) {
	calls := 0
	msg := func() string {
		calls++
		return "lazy"
	}
	col := run(t, func() {
		Assert(true, msg)
		Assert(false, msg)
	})

	assert.Equal(t, 1, calls)
	require.Len(t, col.results, 1)
	assert.Equal(t, "lazy", col.results[0].UserMessage())
}

func TestTerminators(t *testing.T) {
	tests := []struct {
		name string
		call func(...any)
		want domain.Status
	}{
		{"fail", Fail, domain.StatusFailure},
		{"error", Error, domain.StatusError},
		{"pend", Pend, domain.StatusPending},
		{"omit", Omit, domain.StatusOmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			col := run(t, func() {
				tt.call("stop %s", "here")
				reached = true
			})
			assert.False(t, reached)
			require.Len(t, col.results, 1)
			assert.Equal(t, tt.want, col.results[0].Status())
			assert.Equal(t, "stop here", col.results[0].UserMessage())
		})
	}
}

func TestNotify_Continues(t *testing.T) {
	reached := false
	col := run(t, func() {
		Notify("heads up")
		reached = true
	})

	assert.True(t, reached)
	require.Len(t, col.results, 1)
	assert.Equal(t, domain.StatusNotification, col.results[0].Status())
	assert.True(t, strings.HasSuffix(col.results[0].Location().File, "cut_test.go"))
}

func TestUserDataAndAddData(t *testing.T) {
	var got any
	col := &collector{}
	c := testctx.New(testctx.Options{Reporter: col})
	testctx.Push(c)
	defer testctx.Pop()

	c.Invoke(func() {
		SetUserData(42)
		got = UserData()
		AddData("one", 1)
		AddData("two", 2)
	})

	assert.Equal(t, 42, got)
	assert.Equal(t, []domain.TestData{{Name: "one", Value: 1}, {Name: "two", Value: 2}}, c.DataList())
}

func TestOutsideTest_Panics(t *testing.T) {
	assert.PanicsWithValue(t, testctx.ErrNoContext, func() { Assert(true) })
}

func TestFork_CapturesOutput(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	var stdout, stderr string
	var code int
	col := run(t, func() {
		pid := Fork("print")
		code = WaitProcess(pid, 0)
		stdout, stderr = StdoutMessage(pid), StderrMessage(pid)
	})

	assert.Empty(t, col.results)
	assert.Equal(t, 0, code)
	assert.Equal(t, "out", stdout)
	assert.Equal(t, "err", stderr)
}

func TestFork_UnsupportedOmitsTest(t *testing.T) {
	restore := process.SetSupported(func() bool { return false })
	defer restore()

	reached := false
	col := run(t, func() {
		Fork("print")
		reached = true
	})

	assert.False(t, reached)
	require.Len(t, col.results, 1)
	assert.Equal(t, domain.StatusOmission, col.results[0].Status())
	assert.Contains(t, col.results[0].SystemMessage(), "not supported")
}

func TestFork_ChildFailureReportedByParent(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	var code int
	col := run(t, func() {
		code = WaitProcess(Fork("assert"), 0)
	})

	assert.Equal(t, 1, code)
	require.Len(t, col.results, 1)
	r := col.results[0]
	assert.Equal(t, domain.StatusFailure, r.Status())
	assert.Equal(t, "child check", r.UserMessage())
	assert.Equal(t, "test_body", r.TestName())
}
