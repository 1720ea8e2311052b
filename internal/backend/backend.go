// Package backend defines the collaborator contract a braille display
// device fulfils, and ships an in-process implementation so the server
// is runnable end to end without real hardware.
package backend

import (
	"sync"

	"github.com/dantte-lp/brlapid/internal/display"
	"github.com/dantte-lp/brlapid/internal/keycode"
)

// Backend is the external device collaborator: fixed identity and
// geometry, a channel the display actor publishes snapshots to, and a
// channel the core reads keycodes from to deliver as Key packets.
type Backend interface {
	DriverName() string
	ModelID() string
	Dimensions() display.Dimensions

	// MatrixSink is the out-channel the display actor publishes
	// snapshots to. The backend owns reading from it.
	MatrixSink() chan<- display.Snapshot

	// KeycodeSource is the in-channel the core reads keycodes from to
	// broadcast to every authenticated session.
	KeycodeSource() <-chan keycode.Keycode
}

// MemoryBackend is an in-process Backend. It stores every published
// snapshot (for introspection and the admin API) and exposes InjectKey
// to push a synthetic keycode onto the source channel, standing in for
// real hardware input.
type MemoryBackend struct {
	driverName string
	modelID    string
	dim        display.Dimensions

	matrixCh  chan display.Snapshot
	keycodeCh chan keycode.Keycode

	mu       sync.RWMutex
	snapshot display.Snapshot
}

// Option configures a MemoryBackend.
type Option func(*MemoryBackend)

// WithDriverName overrides the default driver name.
func WithDriverName(name string) Option {
	return func(b *MemoryBackend) { b.driverName = name }
}

// WithModelID overrides the default model id.
func WithModelID(id string) Option {
	return func(b *MemoryBackend) { b.modelID = id }
}

// NewMemoryBackend creates an in-process backend of the given
// dimensions. matrixSinkCap bounds the snapshot channel; keycodeSrcCap
// bounds the keycode channel.
func NewMemoryBackend(dim display.Dimensions, matrixSinkCap, keycodeSrcCap int, opts ...Option) *MemoryBackend {
	b := &MemoryBackend{
		driverName: "memory",
		modelID:    "brlapid-demo",
		dim:        dim,
		matrixCh:   make(chan display.Snapshot, matrixSinkCap),
		keycodeCh:  make(chan keycode.Keycode, keycodeSrcCap),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBackend) DriverName() string                  { return b.driverName }
func (b *MemoryBackend) ModelID() string                     { return b.modelID }
func (b *MemoryBackend) Dimensions() display.Dimensions       { return b.dim }
func (b *MemoryBackend) MatrixSink() chan<- display.Snapshot  { return b.matrixCh }
func (b *MemoryBackend) KeycodeSource() <-chan keycode.Keycode { return b.keycodeCh }

// Run drains the matrix channel, recording every snapshot until stop is
// closed or the channel closes. Call it in its own goroutine; it is
// the consumer side of the display actor's publish sink.
func (b *MemoryBackend) Run(stop <-chan struct{}) {
	for {
		select {
		case snap, ok := <-b.matrixCh:
			if !ok {
				return
			}
			b.mu.Lock()
			b.snapshot = snap
			b.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// LatestSnapshot returns the most recently recorded snapshot, for the
// admin /display endpoint and tests.
func (b *MemoryBackend) LatestSnapshot() display.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// InjectKey pushes a synthetic keycode onto the source channel, standing
// in for a real key press from hardware. It blocks if the channel is
// full.
func (b *MemoryBackend) InjectKey(k keycode.Keycode) {
	b.keycodeCh <- k
}
