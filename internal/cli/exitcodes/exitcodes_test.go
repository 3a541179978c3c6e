package exitcodes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForRun(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		crashed bool
		want    int
	}{
		{"passed", true, false, Success},
		{"failed", false, false, TestFailure},
		{"crashed", false, true, Crashed},
		{"crash wins over success", true, true, Crashed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForRun(tt.success, tt.crashed))
		})
	}
}

func TestCode(t *testing.T) {
	base := errors.New("bad order")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"plain error", base, TestFailure},
		{"usage", Usage(base), UsageErr},
		{"wrapped", fmt.Errorf("loading: %w", New(Crashed, base)), Crashed},
		{"bare code", New(TestFailure, nil), TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}

	assert.Nil(t, Usage(nil))
	assert.ErrorIs(t, Usage(base), base)
	assert.Equal(t, "exit status 1", New(TestFailure, nil).Error())
}
