package translate

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestScenarioS4Translation matches S4's assumption: translating "A"
// under the default table yields U+2801 (dot 1).
func TestScenarioS4Translation(t *testing.T) {
	tr := NewAsciiTableTranslator()
	got, err := tr.Translate(context.Background(), DefaultTableName, "A")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := string(rune(0x2801))
	if got != want {
		t.Fatalf("Translate(%q) = %q, want %q", "A", got, want)
	}
}

func TestTranslateUnmappedRuneIsEmptyCell(t *testing.T) {
	tr := NewAsciiTableTranslator()
	got, err := tr.Translate(context.Background(), DefaultTableName, "@")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != string(rune(0x2800)) {
		t.Fatalf("Translate(%q) = %q, want empty cell", "@", got)
	}
}

func TestTranslateUnknownTable(t *testing.T) {
	tr := NewAsciiTableTranslator()
	_, err := tr.Translate(context.Background(), "nonexistent.ctb", "A")
	if !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
}

func TestWorkerSerialisesConcurrentRequests(t *testing.T) {
	tr := NewAsciiTableTranslator()
	w := NewWorker(tr, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	type result struct {
		text string
		got  string
	}
	results := make(chan result, 2)
	for _, text := range []string{"A", "B"} {
		text := text
		go func() {
			got, err := w.Translate(context.Background(), DefaultTableName, text)
			if err != nil {
				t.Errorf("Translate(%q): %v", text, err)
				return
			}
			results <- result{text: text, got: got}
		}()
	}

	seen := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			seen[r.text] = r.got
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for translation results")
		}
	}
	if seen["A"] != string(rune(0x2801)) {
		t.Fatalf("A = %q", seen["A"])
	}
	if seen["B"] != string(rune(0x2803)) {
		t.Fatalf("B = %q", seen["B"])
	}
}

func TestWorkerTranslateContextCancelled(t *testing.T) {
	w := NewWorker(NewAsciiTableTranslator(), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Translate(ctx, DefaultTableName, "A")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type recordingMetrics struct {
	table string
	calls int
}

func (m *recordingMetrics) ObserveTranslation(table string, _ float64) {
	m.table = table
	m.calls++
}

func TestWorkerReportsMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	w := NewWorker(NewAsciiTableTranslator(), 4, nil, WithMetrics(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := w.Translate(context.Background(), DefaultTableName, "A"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if rec.calls != 1 {
		t.Fatalf("calls = %d, want 1", rec.calls)
	}
	if rec.table != DefaultTableName {
		t.Fatalf("table = %q, want %q", rec.table, DefaultTableName)
	}
}
