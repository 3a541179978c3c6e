package unwind

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nest(depth int, leaf func()) {
	if depth == 0 {
		leaf()
		return
	}
	nest(depth-1, leaf)
}

func TestInvoke_ReturnsNormally(t *testing.T) {
	s := NewStack()
	ran := false

	out := s.Invoke(func() { ran = true })

	assert.True(t, ran)
	assert.False(t, out.Jumped)
	assert.False(t, out.Delegated)
	assert.Nil(t, out.Panic)
	assert.Equal(t, 0, s.Depth())
}

func TestJump_FromAnyDepth(t *testing.T) {
	for _, depth := range []int{0, 1, 5, 20, 200} {
		s := NewStack()
		deferred := 0
		reached := false

		out := s.Invoke(func() {
			nest(depth, func() {
				defer func() { deferred++ }()
				s.Jump("boom")
				reached = true
			})
		})

		assert.True(t, out.Jumped, "depth %d", depth)
		assert.Equal(t, "boom", out.Value)
		assert.False(t, reached, "code after Jump ran at depth %d", depth)
		assert.Equal(t, 1, deferred, "deferred call skipped at depth %d", depth)
		assert.Equal(t, 0, s.Depth())
	}
}

func TestJump_StateTransitions(t *testing.T) {
	s := NewStack()
	var during State

	s.Invoke(func() {
		during = s.State()
		s.Jump(nil)
	})

	assert.Equal(t, StateArmed, during)
	assert.Equal(t, StateIdle, s.State())
}

func TestInvoke_NestedJumpSettlesInnermost(t *testing.T) {
	s := NewStack()
	innerDone := false

	out := s.Invoke(func() {
		inner := s.Invoke(func() { s.Jump(1) })
		assert.True(t, inner.Jumped)
		assert.Equal(t, 1, inner.Value)
		innerDone = true
	})

	assert.True(t, innerDone)
	assert.False(t, out.Jumped)
}

func TestInvoke_OuterTargetPropagates(t *testing.T) {
	s := NewStack()
	afterInner := false

	out := s.Invoke(func() {
		outer := s.Current()
		s.Invoke(func() {
			panic(&Unwind{Target: outer, Value: "outer"})
		})
		afterInner = true
	})

	assert.True(t, out.Jumped)
	assert.Equal(t, "outer", out.Value)
	assert.False(t, afterInner)
}

func TestInvoke_ForeignTargetDelegates(t *testing.T) {
	s := NewStack()
	var got *Unwind
	s.SetParentHandler(func(u *Unwind) { got = u })

	out := s.Invoke(func() {
		panic(&Unwind{Target: FrameID(1 << 62), Value: "stale"})
	})

	assert.True(t, out.Delegated)
	require.NotNil(t, got)
	assert.Equal(t, "stale", got.Value)
}

func TestInvoke_ForeignTargetWithoutHandlerPanics(t *testing.T) {
	s := NewStack()

	assert.Panics(t, func() {
		s.Invoke(func() {
			panic(&Unwind{Target: FrameID(1 << 62)})
		})
	})
	assert.Equal(t, 0, s.Depth())
}

func TestInvoke_CapturesForeignPanic(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		wantType string
		wantMsg  string
	}{
		{"error", errors.New("disk on fire"), "*errors.errorString", "disk on fire"},
		{"string", "plain", "string", "plain"},
		{"int", 42, "int", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack()
			out := s.Invoke(func() { nest(3, func() { panic(tt.value) }) })

			require.NotNil(t, out.Panic)
			assert.False(t, out.Jumped)
			assert.Equal(t, tt.wantType, out.Panic.Type)
			assert.Equal(t, tt.wantMsg, out.Panic.Message)
			assert.NotEmpty(t, out.Panic.Stack)
		})
	}
}

func TestEvalMessage_JumpDrainsMessageFrames(t *testing.T) {
	s := NewStack()
	var depthInMessage int

	out := s.Invoke(func() {
		s.EvalMessage(func() string {
			depthInMessage = s.Depth()
			s.Jump("from message")
			return "unreachable"
		})
	})

	assert.Equal(t, 2, depthInMessage)
	assert.True(t, out.Jumped)
	assert.Equal(t, "from message", out.Value)
	assert.Equal(t, 0, s.Depth())
}

func TestEvalMessage_ReturnsValue(t *testing.T) {
	s := NewStack()
	var msg string

	s.Invoke(func() {
		msg = s.EvalMessage(func() string { return "lazy" })
		assert.Equal(t, 1, s.Depth())
	})

	assert.Equal(t, "lazy", msg)
}

func TestJump_FromForeignGoroutine(t *testing.T) {
	s := NewStack()
	var delegated *Unwind
	s.SetParentHandler(func(u *Unwind) { delegated = u })

	var owns bool
	out := s.Invoke(func() {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			owns = s.Owns()
			s.Jump("foreign")
			t.Error("goroutine continued after Jump")
		}()
		wg.Wait()
	})

	assert.False(t, owns)
	assert.False(t, out.Jumped)
	require.NotNil(t, delegated)
	assert.Equal(t, "foreign", delegated.Value)
}

func TestOwns(t *testing.T) {
	s := NewStack()
	assert.False(t, s.Owns())

	s.Invoke(func() {
		assert.True(t, s.Owns())
	})
}

func TestRun_GoexitBecomesPanic(t *testing.T) {
	s := NewStack()
	deferred := false

	out := s.Run(func() {
		defer func() { deferred = true }()
		runtime.Goexit()
	})

	require.NotNil(t, out.Panic)
	assert.True(t, out.Panic.Goexit())
	assert.Equal(t, GoexitType, out.Panic.Type)
	assert.True(t, deferred)
	assert.False(t, out.Jumped)
	assert.Equal(t, 0, s.Depth())
}

func TestRun_JumpSettlesOnItsGoroutine(t *testing.T) {
	s := NewStack()

	out := s.Run(func() {
		nest(5, func() {
			assert.True(t, s.Owns())
			s.Jump(7)
		})
	})

	assert.True(t, out.Jumped)
	assert.Equal(t, 7, out.Value)
	assert.Nil(t, out.Panic)
}

func TestRun_OuterTargetReachesCaller(t *testing.T) {
	s := NewStack()
	var outer FrameID

	out := s.Invoke(func() {
		outer = s.Current()
		s.Run(func() {
			panic(&Unwind{Target: outer, Value: "outer"})
		})
		t.Error("Run returned instead of unwinding")
	})

	assert.True(t, out.Jumped)
	assert.Equal(t, "outer", out.Value)
	assert.Equal(t, 0, s.Depth())
}

func TestRun_ForeignPanic(t *testing.T) {
	s := NewStack()

	out := s.Run(func() { panic("plain") })

	require.NotNil(t, out.Panic)
	assert.False(t, out.Panic.Goexit())
	assert.Equal(t, "string", out.Panic.Type)
	assert.Equal(t, "plain", out.Panic.Message)
}
