package parser

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocut/internal/domain"
	"gocut/internal/event"
)

func sampleSuite() *domain.TestSuite {
	tc := domain.NewTestCase("math")
	tc.AddTest(domain.NewTest("test_add", func() {}))
	return domain.NewTestSuite("all", tc)
}

func TestStream_ResolvesKnownObjects(t *testing.T) {
	suite := sampleSuite()
	tc := suite.Cases[0]
	test := tc.Tests[0]
	res := domain.NewTestResult(domain.ResultSpec{
		Status:   domain.StatusFailure,
		CaseName: "math",
		TestName: "test_add",
		Message:  "expected 3",
		Location: domain.Location{File: "math.go", Line: 12, Function: "test_add"},
	})

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	now := time.Now()
	require.NoError(t, enc.Encode(event.Event{Kind: event.StartTest, Suite: suite, Case: tc, Test: test, Time: now}))
	require.NoError(t, enc.Encode(event.Event{Kind: event.Failure, Suite: suite, Case: tc, Test: test, Result: &res, Time: now}))
	require.NoError(t, enc.Encode(event.Event{Kind: event.CompleteTest, Suite: suite, Case: tc, Test: test, Success: false, Time: now}))

	var got []event.Event
	err := NewStreamParser(suite).Parse(&buf, func(e event.Event) { got = append(got, e) })
	require.NoError(t, err)

	require.Len(t, got, 3)
	for _, e := range got {
		assert.Same(t, suite, e.Suite)
		assert.Same(t, tc, e.Case)
		assert.Same(t, test, e.Test)
	}
	assert.Equal(t, event.Failure, got[1].Kind)
	require.NotNil(t, got[1].Result)
	assert.Equal(t, "expected 3", got[1].Result.SystemMessage())
	assert.Equal(t, 12, got[1].Result.Location().Line)
}

func TestStream_UnknownNamesGetStablePlaceholders(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"start-test","case":"io","test":"test_read","time":"2024-01-01T00:00:00Z"}`,
		``,
		`{"kind":"start-iterated-test","case":"io","test":"test_read","data":"small","time":"2024-01-01T00:00:00Z"}`,
		`{"kind":"complete-iterated-test","case":"io","test":"test_read","data":"small","success":true,"time":"2024-01-01T00:00:00Z"}`,
	}, "\n")

	var got []event.Event
	err := NewStreamParser(nil).Parse(strings.NewReader(input), func(e event.Event) { got = append(got, e) })
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "io", got[0].Case.Name)
	assert.Same(t, got[0].Test, got[1].Test)
	assert.Same(t, got[1].Data, got[2].Data)
	assert.True(t, got[2].Success)
}

func TestStream_MalformedLine(t *testing.T) {
	input := `{"kind":"start-test","time":"2024-01-01T00:00:00Z"}` + "\n" + `{"kind":"exploded"}` + "\n"

	count := 0
	err := NewStreamParser(nil).Parse(strings.NewReader(input), func(event.Event) { count++ })

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, count)
}
