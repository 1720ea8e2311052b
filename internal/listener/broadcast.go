package listener

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dantte-lp/brlapid/internal/keycode"
)

// KeyBroadcaster fans out every keycode read from a backend's source
// channel to all currently subscribed sessions. Delivery to a
// subscriber is non-blocking: a session whose inbound queue is full has
// its keycode dropped and logged rather than stalling every other
// session, matching the core's "neither the actor nor the translator
// blocks on a session" liveness rule extended to broadcast delivery.
type KeyBroadcaster struct {
	mu          sync.Mutex
	subscribers map[int]chan<- keycode.Keycode
	nextID      int
	log         *slog.Logger
}

// NewKeyBroadcaster creates an empty broadcaster.
func NewKeyBroadcaster(log *slog.Logger) *KeyBroadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &KeyBroadcaster{
		subscribers: make(map[int]chan<- keycode.Keycode),
		log:         log,
	}
}

// Subscribe registers ch to receive every subsequently broadcast
// keycode, returning an id to later pass to Unsubscribe.
func (b *KeyBroadcaster) Subscribe(ch chan<- keycode.Keycode) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	return id
}

// Unsubscribe removes a previously subscribed channel. It is a no-op if
// id is unknown (already unsubscribed).
func (b *KeyBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Run reads from source and fans each keycode out to every current
// subscriber until ctx is cancelled or source closes.
func (b *KeyBroadcaster) Run(ctx context.Context, source <-chan keycode.Keycode) {
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-source:
			if !ok {
				return
			}
			b.broadcast(k)
		}
	}
}

func (b *KeyBroadcaster) broadcast(k keycode.Keycode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- k:
		default:
			b.log.Warn("dropping keycode for slow session", slog.Int("subscriber", id))
		}
	}
}
