// Package unwind aborts a running function from an arbitrary call depth and
// hands control back to the frame that invoked it.
//
// A Stack holds armed frames. Invoke arms a frame and runs a function;
// Jump panics with an *Unwind sentinel addressed to the innermost frame,
// which Invoke recovers exactly once. Deferred calls of every intervening
// frame run on the way out.
package unwind

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// State is the lifecycle of a single frame.
type State int32

const (
	StateIdle State = iota
	StateArmed
	StateUnwinding
	StateSettled
	StateReturned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateUnwinding:
		return "unwinding"
	case StateSettled:
		return "settled"
	case StateReturned:
		return "returned"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// FrameID identifies an armed frame. IDs are unique within the process.
type FrameID uint64

var frameSeq atomic.Uint64

type frameKind int

const (
	baseFrame frameKind = iota
	messageFrame
)

type frame struct {
	id    FrameID
	kind  frameKind
	goid  int64
	state atomic.Int32
}

func (f *frame) set(s State) { f.state.Store(int32(s)) }
func (f *frame) get() State  { return State(f.state.Load()) }

// Unwind is the panic value raised by Jump. It is recovered by the Invoke
// call whose frame matches Target.
type Unwind struct {
	Target FrameID
	Value  any
}

func (u *Unwind) Error() string {
	return fmt.Sprintf("unwind to frame %d", u.Target)
}

// Panic describes a foreign panic that crossed an Invoke boundary.
type Panic struct {
	Type    string
	Message string
	Stack   string
	Value   any
}

func newPanic(r any) *Panic {
	p := &Panic{Type: fmt.Sprintf("%T", r), Value: r, Stack: string(debug.Stack())}
	switch v := r.(type) {
	case error:
		p.Message = v.Error()
	case fmt.Stringer:
		p.Message = v.String()
	default:
		p.Message = fmt.Sprint(v)
	}
	return p
}

func (p *Panic) String() string {
	return p.Type + ": " + p.Message
}

// GoexitType is the Panic type reported for a function that left through
// runtime.Goexit.
const GoexitType = "runtime.Goexit"

func goexitPanic() *Panic {
	return &Panic{Type: GoexitType, Message: "goroutine exited without returning"}
}

// Goexit reports whether p stands for a runtime.Goexit rather than a panic.
func (p *Panic) Goexit() bool { return p.Type == GoexitType }

// Outcome reports how an Invoke call ended. At most one of Jumped,
// Delegated and Panic is set; none set means fn returned normally.
type Outcome struct {
	Jumped    bool
	Delegated bool
	Value     any
	Panic     *Panic
}

// ParentHandler receives jumps that no frame on the stack owns.
type ParentHandler func(u *Unwind)

// Stack is the set of frames armed on behalf of one test invocation.
type Stack struct {
	mu     sync.Mutex
	frames []*frame
	parent ParentHandler
}

func NewStack() *Stack {
	return &Stack{}
}

// SetParentHandler installs the handler used for jumps this stack cannot
// settle itself.
func (s *Stack) SetParentHandler(h ParentHandler) {
	s.mu.Lock()
	s.parent = h
	s.mu.Unlock()
}

func (s *Stack) parentHandler() ParentHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent
}

func (s *Stack) push(kind frameKind) *frame {
	f := &frame{id: FrameID(frameSeq.Add(1)), kind: kind, goid: goid.Get()}
	f.set(StateArmed)
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	return f
}

// remove drops f and every frame pushed after it. Removing a frame that is
// already gone is a no-op.
func (s *Stack) remove(f *frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i] == f {
			s.frames = s.frames[:i]
			return
		}
	}
}

func (s *Stack) contains(id FrameID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		if f.id == id {
			return true
		}
	}
	return false
}

// base returns the innermost base frame, or nil.
func (s *Stack) base() *frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].kind == baseFrame {
			return s.frames[i]
		}
	}
	return nil
}

// Invoke arms a frame and runs fn. A Jump addressed to this frame settles
// here; a jump for an outer frame on the same stack keeps propagating; a
// jump owned by no frame on the stack goes to the parent handler. Any other
// panic is captured in Outcome.Panic.
//
// A runtime.Goexit inside fn cannot be stopped; the frame is settled and
// the calling goroutine keeps exiting. Use Run to survive it.
func (s *Stack) Invoke(fn func()) (out Outcome) {
	f := s.push(baseFrame)
	returned := false
	defer func() {
		r := recover()
		s.remove(f)
		if r == nil {
			if returned {
				f.set(StateReturned)
				return
			}
			f.set(StateSettled)
			out = Outcome{Panic: goexitPanic()}
			return
		}
		u, ok := r.(*Unwind)
		if !ok {
			f.set(StateSettled)
			out = Outcome{Panic: newPanic(r)}
			return
		}
		switch {
		case u.Target == f.id:
			f.set(StateSettled)
			out = Outcome{Jumped: true, Value: u.Value}
		case s.contains(u.Target):
			f.set(StateUnwinding)
			panic(u)
		default:
			f.set(StateSettled)
			h := s.parentHandler()
			if h == nil {
				panic(u)
			}
			h(u)
			out = Outcome{Delegated: true, Value: u.Value}
		}
	}()
	fn()
	returned = true
	return out
}

// Run is Invoke on a goroutine of its own. It waits for fn and reports a
// runtime.Goexit as a Panic outcome instead of letting it end the caller.
// Jumps for outer frames and unhandled delegations are re-raised on the
// calling goroutine.
func (s *Stack) Run(fn func()) Outcome {
	var (
		out      Outcome
		finished bool
		raised   any
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				raised = r
			}
		}()
		out = s.Invoke(fn)
		finished = true
	}()
	<-done

	if raised != nil {
		panic(raised)
	}
	if !finished {
		return Outcome{Panic: goexitPanic()}
	}
	return out
}

// Jump aborts the innermost Invoke with value. Pending message frames are
// dropped first. When called from a goroutine other than the one that
// armed the frame, the jump goes to the parent handler and the calling
// goroutine exits. Jump never returns.
func (s *Stack) Jump(value any) {
	s.drainMessages()

	f := s.base()
	if f == nil {
		panic(&Unwind{Value: value})
	}
	u := &Unwind{Target: f.id, Value: value}
	if f.goid != goid.Get() {
		if h := s.parentHandler(); h != nil {
			h(u)
		}
		runtime.Goexit()
	}
	f.set(StateUnwinding)
	panic(u)
}

func (s *Stack) drainMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := len(s.frames); n > 0 && s.frames[n-1].kind == messageFrame; n = len(s.frames) {
		s.frames[n-1].set(StateUnwinding)
		s.frames = s.frames[:n-1]
	}
}

// EvalMessage evaluates a lazily built message inside a message frame, so a
// jump raised while formatting unwinds past it to the base frame.
func (s *Stack) EvalMessage(fn func() string) string {
	f := s.push(messageFrame)
	defer s.remove(f)
	msg := fn()
	f.set(StateReturned)
	return msg
}

// Owns reports whether the calling goroutine armed the innermost frame.
func (s *Stack) Owns() bool {
	f := s.base()
	return f != nil && f.goid == goid.Get()
}

// Current returns the innermost base frame id, or zero.
func (s *Stack) Current() FrameID {
	if f := s.base(); f != nil {
		return f.id
	}
	return 0
}

// State returns the state of the innermost base frame.
func (s *Stack) State() State {
	if f := s.base(); f != nil {
		return f.get()
	}
	return StateIdle
}

// Depth is the number of frames currently armed, message frames included.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
