package listener

import (
	"net"
	"testing"

	"github.com/dantte-lp/brlapid/internal/session"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}

	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	sess := session.New(srv, session.Config{}, nil, nil, nil, nil)
	id := r.register(sess)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}

	r.unregister(id)
	if r.Len() != 0 {
		t.Fatalf("Len() after unregister = %d, want 0", r.Len())
	}
}
