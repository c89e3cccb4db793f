package control

import (
	"sync"
	"sync/atomic"
)

// Reader provides the current joystick position.
// Use this minimal interface in the actuation layer.
type Reader interface {
	Read() Position
}

// Publisher replaces the current joystick position.
type Publisher interface {
	Publish(p Position)
}

// State is the shared control cell. Publish swaps in a whole new record, so a
// concurrent Read sees either the old or the new Position, never a mix.
type State struct {
	current atomic.Pointer[Position]

	mu          sync.RWMutex
	subscribers []func(Position)
}

// Ensure State implements both sides.
var (
	_ Reader    = (*State)(nil)
	_ Publisher = (*State)(nil)
)

// NewState creates a State holding the centered position.
func NewState() *State {
	s := &State{}
	s.current.Store(&Position{})
	return s
}

// Publish overwrites the current position and notifies subscribers.
func (s *State) Publish(p Position) {
	s.current.Store(&p)

	s.mu.RLock()
	subs := s.subscribers
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(p)
	}
}

// Read returns the last published position.
func (s *State) Read() Position {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Position{}
}

// Subscribe registers fn to be called after every Publish, on the
// publisher's goroutine. fn must not block.
func (s *State) Subscribe(fn func(Position)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers[:len(s.subscribers):len(s.subscribers)], fn)
	s.mu.Unlock()
}
