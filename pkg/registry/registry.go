package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Session is the handle the registry keeps for each registered session.
// The concrete type lives in the session package; the registry only
// needs to be able to close it during bulk shutdown.
type Session interface {
	// Close initiates a graceful close. It must be idempotent.
	Close()
}

// Registry maps session identifiers to live sessions.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session

	// counter issues identifiers; it only ever increases.
	counter atomic.Uint64

	// count mirrors len(sessions) for lock-free approximate reads.
	count atomic.Int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

// Register issues a new unique identifier and inserts the session under
// it. On an identifier collision (unreachable with monotonic
// generation, but defended against) it returns an empty identifier and
// leaves the existing entry untouched.
func (r *Registry) Register(s Session) string {
	id := r.nextID()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return ""
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.count.Add(1)
	return id
}

// Unregister removes the entry if present. Unregistering an unknown or
// already-removed identifier is a no-op, so close paths stay idempotent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, exists := r.sessions[id]
	if exists {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if exists {
		r.count.Add(-1)
	}
}

// Lookup returns the session registered under id, if any.
func (r *Registry) Lookup(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveSessionIDs returns a point-in-time snapshot of registered
// identifiers.
func (r *Registry) ActiveSessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the approximate number of registered sessions without
// taking the lock.
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// ShutdownAll drains the registry and closes every session that was
// registered. Sessions are collected under the lock but closed outside
// it, since closing re-enters the registry through Unregister.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	drained := make([]Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		drained = append(drained, s)
		delete(r.sessions, id)
	}
	r.count.Store(0)
	r.mu.Unlock()

	for _, s := range drained {
		s.Close()
	}
}

// nextID formats the next identifier. Identifiers start at session_1.
func (r *Registry) nextID() string {
	return fmt.Sprintf("session_%d", r.counter.Add(1))
}
