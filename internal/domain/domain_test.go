package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Ordering(t *testing.T) {
	assert.False(t, StatusSuccess.IsCritical())
	assert.False(t, StatusNotification.IsCritical())
	assert.False(t, StatusOmission.IsCritical())
	assert.True(t, StatusPending.IsCritical())
	assert.True(t, StatusFailure.IsCritical())
	assert.True(t, StatusError.IsCritical())
	assert.True(t, StatusCrash.IsCritical())

	s, err := ParseStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)
	_, err = ParseStatus("exploded")
	assert.Error(t, err)
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestTestResult_IsImmutableValue(t *testing.T) {
	r := NewTestResult(ResultSpec{Status: StatusFailure, CaseName: "math", TestName: "test_add", DataName: "big"})
	copied := r.WithStatus(StatusNotification).WithOutput("out", "err")

	assert.Equal(t, StatusFailure, r.Status())
	assert.Empty(t, r.Stdout())
	assert.Equal(t, StatusNotification, copied.Status())
	assert.Equal(t, "out", copied.Stdout())
	assert.False(t, r.Timestamp().IsZero())
	assert.Equal(t, "math/test_add (big)", r.FullName())
}

func TestTestResult_Message(t *testing.T) {
	tests := []struct {
		name string
		spec ResultSpec
		want string
	}{
		{"system only", ResultSpec{Message: "<1 == 2>"}, "<1 == 2>"},
		{"user only", ResultSpec{UserMessage: "totals differ"}, "totals differ"},
		{"both", ResultSpec{Message: "<1 == 2>", UserMessage: "totals differ"}, "totals differ\n<1 == 2>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTestResult(tt.spec).Message())
		})
	}
}

func TestTestResult_JSON(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r := NewTestResult(ResultSpec{
		Status:    StatusError,
		TestName:  "test_io",
		Location:  Location{File: "io.go", Line: 3, Function: "test_io"},
		Timestamp: ts,
	})

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"error"`)

	var back TestResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.Spec(), back.Spec())
	assert.Equal(t, "io.go:3: test_io()", back.Location().String())
}

func TestSummary(t *testing.T) {
	var s Summary
	for _, st := range []Status{StatusSuccess, StatusSuccess, StatusPending, StatusOmission} {
		s.Add(st)
	}
	assert.True(t, s.Success())
	assert.Equal(t, StatusPending, s.Worst())

	s.Add(StatusFailure)
	assert.False(t, s.Success())
	assert.Equal(t, 2, s.Count(StatusSuccess))
	assert.Equal(t, StatusFailure, s.Worst())
}

func TestTestCase_AndSuite(t *testing.T) {
	tc := NewTestCase("math")
	tc.AddTest(NewTest("test_add", func() {}))
	tc.AddTest(NewIteratedTest("test_sum", func(any) {}, func() {}))
	suite := NewTestSuite("all", tc)

	assert.Same(t, tc, suite.Case("math"))
	assert.Nil(t, suite.Case("strings"))
	assert.True(t, tc.Test("test_sum").IsIterated())
	assert.False(t, tc.Test("test_add").IsIterated())
	assert.Equal(t, 2, suite.TestCount())

	test := tc.Test("test_add")
	test.AddAssertion()
	test.AddElapsed(time.Second)
	assert.Equal(t, 1, test.Assertions())
	assert.Equal(t, time.Second, test.Elapsed())
}

func TestRunReport_Faults(t *testing.T) {
	report := RunReport{Results: []TestResult{
		NewTestResult(ResultSpec{Status: StatusSuccess}),
		NewTestResult(ResultSpec{Status: StatusNotification}),
		NewTestResult(ResultSpec{Status: StatusOmission}),
		NewTestResult(ResultSpec{Status: StatusFailure}),
	}}
	faults := report.Faults()
	require.Len(t, faults, 2)
	assert.Equal(t, StatusOmission, faults[0].Status())
	assert.Equal(t, StatusFailure, faults[1].Status())
}
