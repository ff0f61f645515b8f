package identity

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	events []string
}

func (c *fakeConn) Send(event string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func TestRegisterValidatesName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"", "ab", "this-name-is-way-too-long-to-pass"} {
		if _, err := r.Register(name, "x", &fakeConn{}); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
	id, err := r.Register("alice", "", &fakeConn{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id.Label != "alice" {
		t.Fatalf("empty label should default to name, got %q", id.Label)
	}
}

func TestRegisterConflictOnLiveConnection(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{}
	if _, err := r.Register("alice", "Alice", c1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register("alice", "Imposter", &fakeConn{}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if _, err := r.Register("bob", "Bob", c1); !errors.Is(err, ErrConnectionInUse) {
		t.Fatalf("expected ErrConnectionInUse, got %v", err)
	}
}

func TestReconnectReusesRecord(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{}
	first, err := r.Register("alice", "Alice", c1)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := r.MarkOffline(c1); got != first {
		t.Fatalf("MarkOffline returned %v, want the alice record", got)
	}
	if r.Online("alice") {
		t.Fatalf("alice should be offline")
	}

	c2 := &fakeConn{}
	second, err := r.Register("alice", "Alice II", c2)
	if err != nil {
		t.Fatalf("re-register after offline: %v", err)
	}
	if second != first {
		t.Fatalf("reconnect should reuse the identity record")
	}
	if !r.Online("alice") {
		t.Fatalf("alice should be back online")
	}
	if second.Label != "Alice II" {
		t.Fatalf("label not refreshed: %q", second.Label)
	}
}

func TestSendToDropsWhenOffline(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	if _, err := r.Register("alice", "Alice", c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.SendTo("alice", "ping", nil) {
		t.Fatalf("SendTo should deliver to a live connection")
	}
	r.MarkOffline(c)
	if r.SendTo("alice", "ping", nil) {
		t.Fatalf("SendTo should report false for offline identity")
	}
	if len(c.events) != 1 {
		t.Fatalf("expected exactly one delivered event, got %d", len(c.events))
	}
}

func TestMarkOfflineUnknownConn(t *testing.T) {
	r := NewRegistry()
	if got := r.MarkOffline(&fakeConn{}); got != nil {
		t.Fatalf("expected nil for unknown connection, got %v", got)
	}
	if n := r.ConnectedCount(); n != 0 {
		t.Fatalf("ConnectedCount = %d, want 0", n)
	}
}
