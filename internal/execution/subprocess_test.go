package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/process"
)

func TestSubProcessGroup_CollectsInCompletionOrder(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	parent := NewRunContext(Options{})
	group := NewSubProcessGroup(parent)
	for _, name := range []string{"p1", "p2", "p3"} {
		group.Add(Options{SuiteSource: "fixture.timed", TargetTestCaseNames: []string{name}})
	}

	require.NoError(t, group.RunAsync(context.Background()))
	ok, err := group.Wait()
	require.NoError(t, err)
	assert.True(t, ok)

	results := parent.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "p2", results[0].CaseName())
	assert.Equal(t, "p1", results[2].CaseName())
	assert.Equal(t, 3, parent.Summary().Successes)

	for _, sp := range group.Members() {
		assert.NotZero(t, sp.Pid())
		assert.Equal(t, StateDone, sp.RunContext().State())
		assert.Equal(t, 1, sp.RunContext().Summary().Tests)
	}
}

func TestSubProcess_ReportsFailure(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	parent := NewRunContext(Options{})
	sp := NewSubProcess(parent, Options{SuiteSource: "fixture.lifecycle", TargetTestNames: []string{"test_deep"}})

	ok, err := sp.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, parent.Results(), 1)
	assert.Equal(t, domain.StatusFailure, parent.Results()[0].Status())
}

func TestSubProcess_LoadError(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	sp := NewSubProcess(nil, Options{SuiteSource: "missing"})

	ok, err := sp.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	results := sp.RunContext().Results()
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusError, results[0].Status())
	assert.Contains(t, results[0].Stderr(), "unknown suite source")
}

func TestSubProcess_WaitBeforeRun(t *testing.T) {
	_, err := NewSubProcess(nil, Options{}).Wait()
	assert.Error(t, err)
}

func TestPipeline_MergesProcesses(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	rc, events, ok := runSource(t, Options{SuiteSource: "fixture.order", SuiteName: "order", Processes: 2})

	assert.True(t, ok)
	all := events()
	assert.Len(t, ofKind(all, event.StartSuite), 1)
	assert.Len(t, ofKind(all, event.CompleteSuite), 1)
	assert.Len(t, ofKind(all, event.StartCase), 2)
	assert.Equal(t, 2, ofKind(all, event.ReadySuite)[0].TotalCases)

	s := rc.Summary()
	assert.Equal(t, 2, s.Cases)
	assert.Equal(t, 4, s.Tests)
	assert.Equal(t, 4, s.Successes)
}

func TestPipeline_UnsupportedRunsInProcess(t *testing.T) {
	restore := process.SetSupported(func() bool { return false })
	defer restore()

	rc := NewRunContext(Options{SuiteSource: "fixture.order", SuiteName: "order", Processes: 2})
	events := recording(rc)
	exec, err := NewExecutor(rc)
	require.NoError(t, err)
	require.IsType(t, &Pipeline{}, exec)

	ok, err := exec.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, ofKind(events(), event.StartSuite), 1)
	assert.Equal(t, 4, rc.Summary().Successes)
}

func TestPipeline_ShardNamesAreExact(t *testing.T) {
	if !process.Supported() {
		t.Skip("process isolation unsupported")
	}
	rc, events, ok := runSource(t, Options{SuiteSource: "fixture.globnames", Processes: 3})

	assert.True(t, ok)
	ready := ofKind(events(), event.ReadySuite)
	require.Len(t, ready, 1)
	assert.Equal(t, 3, ready[0].TotalCases)
	assert.Equal(t, 3, ready[0].TotalTests)

	s := rc.Summary()
	assert.Equal(t, 3, s.Cases)
	assert.Equal(t, 3, s.Tests)
	assert.Equal(t, 3, s.Successes)
}

func TestOptions_ShardFilterIsExact(t *testing.T) {
	cases, _, err := Options{TargetTestCaseNames: []string{"a*"}}.filters()
	require.NoError(t, err)
	assert.True(t, cases.Match("ab"))

	cases, _, err = Options{TargetTestCaseNames: []string{"zzz"}, ShardTestCaseNames: []string{"a*"}}.filters()
	require.NoError(t, err)
	assert.True(t, cases.Match("a*"))
	assert.False(t, cases.Match("ab"))
	assert.False(t, cases.Match("zzz"))

	cases, _, err = Options{ShardTestCaseNames: []string{}}.filters()
	require.NoError(t, err)
	assert.False(t, cases.Match("ab"))
}

func TestNewExecutor_Selects(t *testing.T) {
	exec, err := NewExecutor(NewRunContext(Options{SuiteSource: "fixture.order"}))
	require.NoError(t, err)
	assert.IsType(t, &TestRunner{}, exec)

	exec, err = NewExecutor(NewRunContext(Options{Processes: 2}))
	require.NoError(t, err)
	assert.IsType(t, &Pipeline{}, exec)

	_, err = NewExecutor(NewRunContext(Options{SuiteSource: "missing"}))
	assert.Error(t, err)
}
