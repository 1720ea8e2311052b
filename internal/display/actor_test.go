package display

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestActor(t *testing.T, dim Dimensions) (*Actor, chan Snapshot, context.CancelFunc) {
	t.Helper()
	sink := make(chan Snapshot, 8)
	a := New(dim, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return a, sink, cancel
}

// TestInitialSnapshotIsAllZero covers property 6: on creation the actor
// publishes the initial all-zero matrix before processing any command.
func TestInitialSnapshotIsAllZero(t *testing.T) {
	_, sink, _ := newTestActor(t, Dimensions{Columns: 4, Lines: 1})

	select {
	case snap := <-sink:
		for i, c := range snap.Cells {
			if c != 0 {
				t.Fatalf("initial cell %d = %#x, want 0", i, c)
			}
		}
		if snap.Cursor != nil {
			t.Fatalf("initial cursor = %v, want nil", *snap.Cursor)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}
}

// TestGetDimensionsDoesNotPublish covers property 7: a read-only command
// acknowledges without emitting a new snapshot.
func TestGetDimensionsDoesNotPublish(t *testing.T) {
	a, sink, _ := newTestActor(t, Dimensions{Columns: 4, Lines: 1})
	<-sink // drain initial snapshot

	ctx := context.Background()
	dim, err := a.GetDimensions(ctx)
	if err != nil {
		t.Fatalf("GetDimensions: %v", err)
	}
	if dim != (Dimensions{Columns: 4, Lines: 1}) {
		t.Fatalf("dimensions = %+v", dim)
	}

	select {
	case snap := <-sink:
		t.Fatalf("unexpected snapshot published: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSetCursorOverlayDoesNotMutateStoredMatrix covers property 8: the
// cursor overlay is applied only to the published snapshot, never to the
// actor's own stored matrix.
func TestSetCursorOverlayDoesNotMutateStoredMatrix(t *testing.T) {
	a, sink, _ := newTestActor(t, Dimensions{Columns: 4, Lines: 1})
	<-sink // drain initial snapshot

	ctx := context.Background()
	if err := a.SetBrailleMatrixSection(ctx, 0, 1, []byte{0x01}); err != nil {
		t.Fatalf("SetBrailleMatrixSection: %v", err)
	}
	<-sink

	pos := uint16(0)
	if err := a.SetCursor(ctx, &pos); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	select {
	case snap := <-sink:
		if snap.Cells[0] != 0xC1 {
			t.Fatalf("snapshot cell 0 = %#x, want 0xC1", snap.Cells[0])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cursor snapshot")
	}

	// Clearing the cursor republishes the stored matrix with no overlay,
	// which proves the stored matrix underneath was never mutated: if it
	// had been, cell 0 would still read 0xC1 instead of plain 0x01.
	if err := a.SetCursor(ctx, nil); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	select {
	case snap := <-sink:
		if snap.Cells[0] != 0x01 {
			t.Fatalf("stored matrix corrupted: cell 0 = %#x, want 0x01", snap.Cells[0])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

// TestSetBrailleMatrixSectionOutOfRangeIsFatal covers property 9: an
// out-of-range section write is an invariant breach that ends the actor
// rather than returning a recoverable error.
func TestSetBrailleMatrixSectionOutOfRangeIsFatal(t *testing.T) {
	sink := make(chan Snapshot, 8)
	a := New(Dimensions{Columns: 4, Lines: 1}, sink, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	<-sink // drain initial snapshot

	reply := make(chan struct{})
	a.cmdCh <- setMatrixSectionCmd{start: 3, length: 5, cells: make([]byte, 5), reply: reply}

	select {
	case <-done:
		// actor exited as expected after logging the invariant breach
	case <-time.After(time.Second):
		t.Fatal("actor did not exit after invariant breach")
	}
}

// TestScenarioS4WriteSingleCellWithCursor matches S4: writing "A" (0x01)
// at position 1 with cursor at column 1 publishes cell[0] = 0xC1 while
// the stored matrix keeps cell[0] = 0x01, and the cursor is reported as
// set.
func TestScenarioS4WriteSingleCellWithCursor(t *testing.T) {
	a, sink, _ := newTestActor(t, Dimensions{Columns: 1, Lines: 1})
	<-sink // drain initial snapshot

	ctx := context.Background()
	if err := a.SetBrailleMatrixSection(ctx, 0, 1, []byte{0x01}); err != nil {
		t.Fatalf("SetBrailleMatrixSection: %v", err)
	}
	<-sink

	pos := uint16(0)
	if err := a.SetCursor(ctx, &pos); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	select {
	case snap := <-sink:
		if len(snap.Cells) != 1 || snap.Cells[0] != 0xC1 {
			t.Fatalf("snapshot = %+v, want cell[0]=0xC1", snap)
		}
		if snap.Cursor == nil || *snap.Cursor != 0 {
			t.Fatalf("snapshot cursor = %v, want Some(0)", snap.Cursor)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

// TestCommandsProcessedInArrivalOrder ensures writes from a single
// caller land on the stored matrix in the order they were sent, with no
// reordering across the actor's single-consumer loop.
func TestCommandsProcessedInArrivalOrder(t *testing.T) {
	a, sink, _ := newTestActor(t, Dimensions{Columns: 1, Lines: 1})
	<-sink // drain initial snapshot

	ctx := context.Background()
	for _, v := range []byte{0x01, 0x02, 0x03} {
		if err := a.SetBrailleMatrixSection(ctx, 0, 1, []byte{v}); err != nil {
			t.Fatalf("SetBrailleMatrixSection(%#x): %v", v, err)
		}
		select {
		case snap := <-sink:
			if snap.Cells[0] != v {
				t.Fatalf("snapshot cell = %#x, want %#x", snap.Cells[0], v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

type recordingMetrics struct {
	published int
}

func (m *recordingMetrics) IncSnapshotsPublished() { m.published++ }

func TestActorReportsPublishedSnapshots(t *testing.T) {
	sink := make(chan Snapshot, 8)
	rec := &recordingMetrics{}
	a := New(Dimensions{Columns: 1, Lines: 1}, sink, nil, WithMetrics(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	<-sink // initial snapshot

	if err := a.SetBrailleMatrixSection(ctx, 0, 1, []byte{0x01}); err != nil {
		t.Fatalf("SetBrailleMatrixSection: %v", err)
	}
	<-sink

	if rec.published != 2 {
		t.Fatalf("published = %d, want 2", rec.published)
	}
}
