package testctx

import (
	"errors"
	"sync"

	"github.com/petermattis/goid"
)

// ErrNoContext is raised when an assertion runs outside of any test.
var ErrNoContext = errors.New("assertion used outside of a running test")

// Provider tracks the current Context of the calling execution unit.
type Provider interface {
	Push(c *Context)
	Pop() *Context
	Current() *Context
}

// goroutineProvider keeps one stack of contexts per goroutine.
type goroutineProvider struct {
	mu     sync.Mutex
	stacks map[int64][]*Context
}

func NewGoroutineProvider() Provider {
	return &goroutineProvider{stacks: make(map[int64][]*Context)}
}

func (p *goroutineProvider) Push(c *Context) {
	id := goid.Get()
	p.mu.Lock()
	p.stacks[id] = append(p.stacks[id], c)
	p.mu.Unlock()
}

func (p *goroutineProvider) Pop() *Context {
	id := goid.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	stack := p.stacks[id]
	if len(stack) == 0 {
		return nil
	}
	c := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(p.stacks, id)
	} else {
		p.stacks[id] = stack[:len(stack)-1]
	}
	return c
}

func (p *goroutineProvider) Current() *Context {
	id := goid.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	stack := p.stacks[id]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

var (
	providerMu sync.RWMutex
	provider   = NewGoroutineProvider()
)

// SetProvider replaces the process-wide provider and returns a function
// restoring the previous one.
func SetProvider(p Provider) (restore func()) {
	providerMu.Lock()
	prev := provider
	provider = p
	providerMu.Unlock()
	return func() {
		providerMu.Lock()
		provider = prev
		providerMu.Unlock()
	}
}

func active() Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider
}

func Push(c *Context)   { active().Push(c) }
func Pop() *Context     { return active().Pop() }
func Current() *Context { return active().Current() }

// MustCurrent returns the current context or panics with ErrNoContext.
func MustCurrent() *Context {
	c := Current()
	if c == nil {
		panic(ErrNoContext)
	}
	return c
}
