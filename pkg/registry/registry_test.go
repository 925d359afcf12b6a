package registry

import (
	"fmt"
	"sync"
	"testing"
)

// stubSession records Close calls.
type stubSession struct {
	mu     sync.Mutex
	closed bool
}

func (s *stubSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	s := &stubSession{}

	id := r.Register(s)
	if id == "" {
		t.Fatal("Register returned empty identifier")
	}

	got, ok := r.Lookup(id)
	if !ok {
		t.Fatalf("Lookup(%q) returned absent", id)
	}
	if got != s {
		t.Errorf("Lookup returned a different handle")
	}
	if r.Count() != 1 {
		t.Errorf("Count: expected 1, got %d", r.Count())
	}
}

func TestIdentifiersAreSequentialAndUnique(t *testing.T) {
	r := New()

	first := r.Register(&stubSession{})
	if first != "session_1" {
		t.Errorf("first identifier: expected session_1, got %q", first)
	}

	seen := map[string]bool{first: true}
	for i := 0; i < 99; i++ {
		id := r.Register(&stubSession{})
		if seen[id] {
			t.Fatalf("identifier %q issued twice", id)
		}
		seen[id] = true
	}
}

func TestIdentifiersNeverReused(t *testing.T) {
	r := New()

	id1 := r.Register(&stubSession{})
	r.Unregister(id1)

	id2 := r.Register(&stubSession{})
	if id2 == id1 {
		t.Errorf("identifier %q reused after unregister", id1)
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	id := r.Register(&stubSession{})

	r.Unregister(id)
	if _, ok := r.Lookup(id); ok {
		t.Errorf("Lookup(%q) found entry after Unregister", id)
	}
	if r.Count() != 0 {
		t.Errorf("Count after Unregister: expected 0, got %d", r.Count())
	}

	// Unknown and repeated unregisters are no-ops
	r.Unregister(id)
	r.Unregister("session_9999")
	r.Unregister("")
	if r.Count() != 0 {
		t.Errorf("Count after redundant Unregisters: expected 0, got %d", r.Count())
	}
}

func TestActiveSessionIDsSnapshot(t *testing.T) {
	r := New()
	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		want[r.Register(&stubSession{})] = true
	}

	ids := r.ActiveSessionIDs()
	if len(ids) != 5 {
		t.Fatalf("expected 5 identifiers, got %d", len(ids))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected identifier %q in snapshot", id)
		}
	}
}

func TestShutdownAllClosesOutsideLock(t *testing.T) {
	r := New()

	// Sessions whose Close re-enters the registry through Unregister,
	// as real sessions do. ShutdownAll must not hold the lock while
	// invoking Close or this deadlocks.
	closers := make([]*reentrantCloser, 10)
	for i := range closers {
		c := &reentrantCloser{inner: &stubSession{}, r: r}
		c.id = r.Register(c)
		closers[i] = c
	}

	r.ShutdownAll()

	if r.Count() != 0 {
		t.Errorf("Count after ShutdownAll: expected 0, got %d", r.Count())
	}
	for i, c := range closers {
		if !c.inner.isClosed() {
			t.Errorf("session %d not closed by ShutdownAll", i)
		}
	}
}

// reentrantCloser unregisters itself on Close, mirroring the session
// close path. ShutdownAll must not hold the lock while invoking it.
type reentrantCloser struct {
	inner *stubSession
	r     *Registry
	id    string
}

func (c *reentrantCloser) Close() {
	c.r.Unregister(c.id)
	c.inner.Close()
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := New()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := r.Register(&stubSession{})
				if id == "" {
					t.Error("Register returned empty identifier")
					return
				}
				if _, ok := r.Lookup(id); !ok {
					t.Errorf("Lookup(%q) absent right after Register", id)
					return
				}
				r.Unregister(id)
			}
		}()
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count after churn: expected 0, got %d", r.Count())
	}
	if len(r.ActiveSessionIDs()) != 0 {
		t.Errorf("snapshot not empty after churn")
	}
}

func TestCountTracksRegistrations(t *testing.T) {
	r := New()
	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, r.Register(&stubSession{}))
		if r.Count() != i+1 {
			t.Errorf("Count after %d registers: got %d", i+1, r.Count())
		}
	}
	for i, id := range ids {
		r.Unregister(id)
		if want := len(ids) - i - 1; r.Count() != want {
			t.Errorf("Count after unregister %s: got %d, want %d", id, r.Count(), want)
		}
	}
	// Identifier formatting stays deterministic
	if next := r.Register(&stubSession{}); next != fmt.Sprintf("session_%d", 8) {
		t.Errorf("unexpected identifier %q", next)
	}
}
