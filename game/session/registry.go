package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/prajjwaltripathi07/chess/game/engine"
)

// Registry maps session IDs to sessions and decides where new connections sit
type Registry struct {
	engine    engine.Engine
	observers bool
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []*Session
	nextID   int
}

// Option configures a Registry
type Option func(*Registry)

// WithObservers enables explicit read-only observers
func WithObservers(enabled bool) Option {
	return func(r *Registry) {
		r.observers = enabled
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry whose sessions play with eng
func NewRegistry(eng engine.Engine, opts ...Option) *Registry {
	r := &Registry{
		engine:   eng,
		now:      time.Now,
		sessions: make(map[string]*Session),
		nextID:   1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Assign seats connID in the oldest session with an empty seat, or in a
// new session when every existing one is full.
func (r *Registry) Assign(connID string) (Placement, *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.order {
		if seat, ok := s.occupy(connID); ok {
			return Placement{SessionID: s.ID, Seat: seat}, s
		}
	}

	id := fmt.Sprintf("room-%d", r.nextID)
	r.nextID++

	s := newSession(id, r.engine, r.now)
	seat, _ := s.occupy(connID)
	r.sessions[id] = s
	r.order = append(r.order, s)

	return Placement{SessionID: id, Seat: seat}, s
}

// Observe attaches connID to an existing session without a seat
func (r *Registry) Observe(connID, sessionID string) (Placement, *Session, error) {
	if !r.observers {
		return Placement{}, nil, ErrObserversDisabled
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return Placement{}, nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	s.observe(connID)
	return Placement{SessionID: sessionID, Observer: true}, s, nil
}

// Release empties seat in the session and removes the session once both
// seats are empty. It reports whether the session was removed. Releasing
// an empty seat or an unknown session is a no-op.
func (r *Registry) Release(sessionID string, seat engine.Seat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if !s.vacate(seat) {
		return false
	}

	delete(r.sessions, sessionID)
	for i, candidate := range r.order {
		if candidate == s {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the session with the given ID
func (r *Registry) Lookup(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return s, nil
}

// List returns all sessions in creation order
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, len(r.order))
	copy(result, r.order)
	return result
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ObserversEnabled reports whether Observe is allowed
func (r *Registry) ObserversEnabled() bool {
	return r.observers
}
