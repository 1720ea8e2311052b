// Package display implements the single-owner braille display actor: the
// authoritative braille matrix and cursor, serialising commands from any
// number of concurrent sessions and publishing immutable snapshots to a
// backend sink.
//
// The actor is the canonical sequential-owner pattern: a bounded FIFO of
// tagged command messages, each carrying a reply channel, processed one
// at a time by a single goroutine. There is no shared mutable state and
// no mutex; callers coordinate purely by sending on the command channel
// and waiting on their own reply.
package display

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultCommandQueueSize is the suggested bounded capacity for the
// actor's inbound command channel.
const DefaultCommandQueueSize = 32

// Dimensions describes a backend's fixed display geometry.
type Dimensions struct {
	Columns uint8
	Lines   uint8
}

// Snapshot is an immutable copy of the matrix plus cursor overlay,
// published to the backend once per mutating command. The stored
// matrix itself never carries the overlay; it is applied fresh on every
// publish.
type Snapshot struct {
	Cells  []byte
	Cursor *uint16 // nil means no cursor
}

// cursorOverlay sets dots 7 and 8 on the cursor cell.
const cursorOverlay byte = 0xC0

// MetricsReporter receives display-actor publish events for Prometheus
// instrumentation.
type MetricsReporter interface {
	IncSnapshotsPublished()
}

type noopMetrics struct{}

func (noopMetrics) IncSnapshotsPublished() {}

// Option configures optional Actor parameters.
type Option func(*Actor)

// WithMetrics sets the MetricsReporter an Actor reports published snapshots
// to. Omitting it leaves metrics reporting a no-op.
func WithMetrics(m MetricsReporter) Option {
	return func(a *Actor) { a.metrics = m }
}

// command is the sealed set of messages the actor accepts.
type command interface{ isCommand() }

type getDimensionsCmd struct {
	reply chan Dimensions
}

func (getDimensionsCmd) isCommand() {}

type setCursorCmd struct {
	position *uint16
	reply    chan struct{}
}

func (setCursorCmd) isCommand() {}

type setMatrixSectionCmd struct {
	start, length uint16
	cells         []byte
	reply         chan struct{}
}

func (setMatrixSectionCmd) isCommand() {}

// Actor owns the braille matrix and cursor for one backend. Create one
// with New and run it with Run in its own goroutine; every other method
// is safe to call concurrently from any number of session goroutines.
type Actor struct {
	columns uint8
	lines   uint8
	matrix  []byte // len == columns*lines, never carries the cursor overlay
	cursor  *uint16

	cmdCh   chan command
	sink    chan<- Snapshot
	log     *slog.Logger
	metrics MetricsReporter
}

// New creates an actor for a backend of the given dimensions, publishing
// snapshots to sink. The initial all-zero matrix is published once Run
// starts.
func New(dim Dimensions, sink chan<- Snapshot, log *slog.Logger, opts ...Option) *Actor {
	if log == nil {
		log = slog.Default()
	}
	a := &Actor{
		columns: dim.Columns,
		lines:   dim.Lines,
		matrix:  make([]byte, int(dim.Columns)*int(dim.Lines)),
		cmdCh:   make(chan command, DefaultCommandQueueSize),
		sink:    sink,
		log:     log,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run processes commands strictly in arrival order until ctx is
// cancelled. It must run in its own goroutine.
//
// An invariant breach (an out-of-range SetBrailleMatrixSection) is
// treated as a programming error: Run logs it and returns, ending the
// actor without restarting it. Sessions that subsequently block sending
// a command simply stall; this core does not supervise or restart the
// actor (see the error handling design notes).
func (a *Actor) Run(ctx context.Context) {
	a.publish(a.snapshot())

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.cmdCh:
			if fatal := a.handle(cmd); fatal {
				return
			}
		}
	}
}

func (a *Actor) handle(cmd command) (fatal bool) {
	switch c := cmd.(type) {
	case getDimensionsCmd:
		c.reply <- Dimensions{Columns: a.columns, Lines: a.lines}

	case setCursorCmd:
		a.cursor = c.position
		a.publish(a.snapshot())
		close(c.reply)

	case setMatrixSectionCmd:
		end := int(c.start) + int(c.length)
		if end > len(a.matrix) {
			a.log.Error("display actor invariant breach: matrix section out of range",
				slog.Int("start", int(c.start)),
				slog.Int("length", int(c.length)),
				slog.Int("matrix_size", len(a.matrix)))
			return true
		}
		copy(a.matrix[c.start:end], c.cells)
		a.publish(a.snapshot())
		close(c.reply)
	}
	return false
}

// snapshot clones the stored matrix and applies the cursor overlay,
// leaving the stored matrix untouched.
func (a *Actor) snapshot() Snapshot {
	cells := make([]byte, len(a.matrix))
	copy(cells, a.matrix)

	var cursor *uint16
	if a.cursor != nil {
		if idx := int(*a.cursor); idx < len(cells) {
			cells[idx] |= cursorOverlay
		}
		pos := *a.cursor
		cursor = &pos
	}
	return Snapshot{Cells: cells, Cursor: cursor}
}

func (a *Actor) publish(snap Snapshot) {
	if a.sink == nil {
		return
	}
	a.sink <- snap
	a.metrics.IncSnapshotsPublished()
}

// GetDimensions returns the backend's fixed geometry. It never mutates
// state or publishes a snapshot.
func (a *Actor) GetDimensions(ctx context.Context) (Dimensions, error) {
	reply := make(chan Dimensions, 1)
	if err := a.send(ctx, getDimensionsCmd{reply: reply}); err != nil {
		return Dimensions{}, err
	}
	select {
	case dim := <-reply:
		return dim, nil
	case <-ctx.Done():
		return Dimensions{}, ctx.Err()
	}
}

// SetCursor updates the cursor position (nil clears it), publishes a
// snapshot with the new overlay applied, and waits for the actor to
// acknowledge.
func (a *Actor) SetCursor(ctx context.Context, position *uint16) error {
	reply := make(chan struct{})
	if err := a.send(ctx, setCursorCmd{position: position, reply: reply}); err != nil {
		return err
	}
	return a.await(ctx, reply)
}

// SetBrailleMatrixSection overwrites matrix[start:start+length] with
// cells, publishes a snapshot, and waits for acknowledgement. start and
// length are validated by the actor itself (out of range is a fatal
// invariant breach, not a returned error); callers are expected to have
// already bounded start+length against the backend's known dimensions.
func (a *Actor) SetBrailleMatrixSection(ctx context.Context, start, length uint16, cells []byte) error {
	if int(length) != len(cells) {
		return fmt.Errorf("display: cells length %d does not match section length %d", len(cells), length)
	}
	reply := make(chan struct{})
	if err := a.send(ctx, setMatrixSectionCmd{start: start, length: length, cells: cells, reply: reply}); err != nil {
		return err
	}
	return a.await(ctx, reply)
}

func (a *Actor) send(ctx context.Context, cmd command) error {
	select {
	case a.cmdCh <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) await(ctx context.Context, reply chan struct{}) error {
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
