package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/domain"
	"gocut/internal/event"
)

func TestCollector_WriteTextfile(t *testing.T) {
	suite := domain.NewTestSuite("unit")
	tc := domain.NewTestCase("math")
	test := domain.NewTest("test_add", func() {})
	iterated := domain.NewIteratedTest("test_table", func(any) {}, func() {})
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	success := domain.NewTestResult(domain.ResultSpec{Status: domain.StatusSuccess, Elapsed: 20 * time.Millisecond})
	failure := domain.NewTestResult(domain.ResultSpec{Status: domain.StatusFailure})

	c := NewCollector()
	for _, e := range []event.Event{
		{Kind: event.StartSuite, Suite: suite, Time: start},
		{Kind: event.StartCase, Suite: suite, Case: tc},
		{Kind: event.StartTest, Suite: suite, Case: tc, Test: test},
		{Kind: event.PassAssertion, Suite: suite, Case: tc, Test: test},
		{Kind: event.Success, Suite: suite, Result: &success},
		{Kind: event.StartTest, Suite: suite, Case: tc, Test: iterated},
		{Kind: event.StartIteratedTest, Suite: suite, Case: tc, Test: iterated},
		{Kind: event.Failure, Suite: suite, Result: &failure},
		{Kind: event.CompleteSuite, Suite: suite, Time: start.Add(1500 * time.Millisecond)},
	} {
		c.Observe(e)
	}

	dir, err := os.MkdirTemp("", "gocut-metrics-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "gocut.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `gocut_results_total{status="success",suite="unit"} 1`)
	assert.Contains(t, text, `gocut_results_total{status="failure",suite="unit"} 1`)
	assert.Contains(t, text, `gocut_tests_total{suite="unit"} 2`)
	assert.Contains(t, text, `gocut_test_cases_total{suite="unit"} 1`)
	assert.Contains(t, text, `gocut_assertions_total{suite="unit"} 1`)
	assert.Contains(t, text, `gocut_run_success{suite="unit"} 0`)
	assert.Contains(t, text, `gocut_run_duration_seconds{suite="unit"} 1.5`)
	assert.Contains(t, text, `gocut_test_duration_seconds_count{suite="unit"} 1`)
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// just test that two collectors can coexist without duplicate
	// registration panics
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("NewCollector panicked: %v", r)
		}
	}()
	NewCollector()
	NewCollector()
}
