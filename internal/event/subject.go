package event

import "sync"

// Subject is a typed observer list. Emit delivers to subscribers in
// subscription order and is serialized, so observers never see two events
// at once.
type Subject[E any] struct {
	mu        sync.Mutex
	emitMu    sync.Mutex
	nextID    int
	observers []observer[E]
}

type observer[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Subject[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[E]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Subject[E]) Emit(e E) {
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, o := range observers {
		o.fn(e)
	}
}

// Len is the number of current subscribers.
func (s *Subject[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}
