package listener

import (
	"sync"

	"github.com/dantte-lp/brlapid/internal/session"
)

// Registry tracks every currently connected session so the admin API can
// list them. It has no effect on dispatch; it only holds references for
// introspection.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*session.Session
	nextID   int
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*session.Session)}
}

// register adds sess to the registry and returns an id to later pass to
// unregister.
func (r *Registry) register(sess *session.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.sessions[id] = sess
	return id
}

// unregister removes a previously registered session.
func (r *Registry) unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of currently registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the current Stats of every registered session, in no
// particular order.
func (r *Registry) Snapshot() []session.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.Stats, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.Stats())
	}
	return out
}
