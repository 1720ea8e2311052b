// Package listener accepts TCP connections and spawns one session per
// connection, wiring each session to the shared display actor,
// translator and keycode broadcaster.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/dantte-lp/brlapid/internal/session"
)

// SessionFactory builds a session for a freshly accepted connection.
type SessionFactory func(conn net.Conn) *session.Session

// Listener accepts connections on a bound net.Listener and spawns one
// session goroutine per connection. Listener failure is fatal to Run;
// individual session failures never propagate.
type Listener struct {
	ln       net.Listener
	newSess  SessionFactory
	log      *slog.Logger
	registry *Registry
}

// Listen binds addr (host:port, e.g. "0.0.0.0:4101") over TCP.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: listen %s: %w", addr, err)
	}
	return ln, nil
}

// New creates a Listener around an already-bound net.Listener. The returned
// Listener's Registry can be queried by the admin API for the set of
// currently connected sessions.
func New(ln net.Listener, newSess SessionFactory, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{ln: ln, newSess: newSess, log: log, registry: NewRegistry()}
}

// Registry returns the listener's session registry.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// Run accepts connections until ctx is cancelled or Accept fails for a
// reason other than the listener having been closed by ctx cancellation.
// Each accepted connection gets its own session goroutine; Run never
// blocks on a session.
func (l *Listener) Run(ctx context.Context) error {
	closeOnCancel := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.ln.Close()
		case <-closeOnCancel:
		}
	}()
	defer close(closeOnCancel)

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listener: accept: %w", err)
		}
		sess := l.newSess(conn)
		id := l.registry.register(sess)
		go func() {
			defer l.registry.unregister(id)
			sess.Serve(ctx)
		}()
	}
}

// ErrClosed is net.ErrClosed, re-exported so callers can match a closed
// listener socket without importing net.
var ErrClosed = net.ErrClosed

// IsClosed reports whether err indicates the listener was closed, as
// opposed to a genuine accept failure.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
