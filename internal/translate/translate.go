// Package translate hosts the text-to-braille translation worker: a
// single dedicated goroutine that runs a (potentially slow, blocking)
// Translator off the session/display hot path, fed by a bounded request
// queue.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// MetricsReporter receives translation round-trip observations for
// Prometheus instrumentation.
type MetricsReporter interface {
	ObserveTranslation(table string, seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTranslation(string, float64) {}

// Option configures optional Worker parameters.
type Option func(*Worker)

// WithMetrics sets the MetricsReporter a Worker reports translation
// latency to. Omitting it leaves metrics reporting a no-op.
func WithMetrics(m MetricsReporter) Option {
	return func(w *Worker) { w.metrics = m }
}

// Translator turns text into a Unicode braille-dot string (each rune in
// U+2800..U+28FF, one rune per input character) under a named table.
// Implementations may block.
type Translator interface {
	Translate(ctx context.Context, table, text string) (string, error)
}

// DefaultQueueSize is the suggested bounded capacity for a Worker's
// request channel.
const DefaultQueueSize = 32

type request struct {
	table, text string
	reply       chan response
}

type response struct {
	result string
	err    error
}

// Worker runs a Translator on a dedicated goroutine pinned to its own OS
// thread, serialising requests from any number of callers. Create one
// with NewWorker and run it with Run in its own goroutine.
type Worker struct {
	translator Translator
	reqCh      chan request
	log        *slog.Logger
	metrics    MetricsReporter
}

// NewWorker creates a worker around t with the given bounded queue
// capacity.
func NewWorker(t Translator, queueSize int, log *slog.Logger, opts ...Option) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Worker{
		translator: t,
		reqCh:      make(chan request, queueSize),
		log:        log,
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes requests one at a time until ctx is cancelled. It must
// run in its own goroutine; it pins an OS thread for the lifetime of the
// blocking translator calls, matching how the core isolates any
// potentially slow foreign call from the cooperative I/O scheduler.
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqCh:
			start := time.Now()
			result, err := w.translator.Translate(ctx, req.table, req.text)
			w.metrics.ObserveTranslation(req.table, time.Since(start).Seconds())
			select {
			case req.reply <- response{result: result, err: err}:
			case <-ctx.Done():
			}
		}
	}
}

// Translate enqueues a translation request and waits for the result.
// Callers (session tasks) never touch the Translator directly; this is
// the only blocking point the worker exposes to the rest of the core.
func (w *Worker) Translate(ctx context.Context, table, text string) (string, error) {
	reply := make(chan response, 1)
	select {
	case w.reqCh <- request{table: table, text: text, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp.result, resp.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ErrUnknownTable is returned by AsciiTableTranslator for a table name it
// has no mapping for.
var ErrUnknownTable = errors.New("translate: unknown table")

// AsciiTableTranslator is a deterministic placeholder Translator: a
// small built-in map from ASCII runes to 6-dot braille-cell values,
// standing in for a real translation backend such as liblouis.
// Unmapped runes translate to an empty cell (U+2800).
type AsciiTableTranslator struct {
	tables map[string]map[rune]byte
}

// DefaultTableName is the table NewAsciiTableTranslator registers its
// built-in alphabet under.
const DefaultTableName = "en-us-comp8.ctb"

// NewAsciiTableTranslator builds a translator preloaded with the
// standard English Braille grade-1 alphabet under DefaultTableName.
func NewAsciiTableTranslator() *AsciiTableTranslator {
	return &AsciiTableTranslator{
		tables: map[string]map[rune]byte{
			DefaultTableName: grade1Alphabet(),
		},
	}
}

// RegisterTable adds or replaces a named rune-to-cell table.
func (a *AsciiTableTranslator) RegisterTable(name string, table map[rune]byte) {
	a.tables[name] = table
}

// Translate implements Translator. It never blocks for any meaningful
// duration; the dedicated worker goroutine exists so a real backend that
// does block (liblouis, an external process) has somewhere to do it
// without stalling the I/O scheduler.
func (a *AsciiTableTranslator) Translate(_ context.Context, table, text string) (string, error) {
	cells, ok := a.tables[table]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	out := make([]rune, 0, len(text))
	for _, r := range text {
		dots, ok := cells[r]
		if !ok {
			dots = 0
		}
		out = append(out, rune(0x2800)+rune(dots))
	}
	return string(out), nil
}

// grade1Alphabet returns the classic 6-dot English Braille grade-1
// mapping for lowercase and uppercase ASCII letters, digits (reusing
// letters a-j per the standard numeric indicator convention, sign
// omitted here since this table is a single-cell-per-rune placeholder),
// and space.
func grade1Alphabet() map[rune]byte {
	letters := map[rune]byte{
		'a': 0x01, 'b': 0x03, 'c': 0x09, 'd': 0x19, 'e': 0x11,
		'f': 0x0B, 'g': 0x1B, 'h': 0x13, 'i': 0x0A, 'j': 0x1A,
		'k': 0x05, 'l': 0x07, 'm': 0x0D, 'n': 0x1D, 'o': 0x15,
		'p': 0x0F, 'q': 0x1F, 'r': 0x17, 's': 0x0E, 't': 0x1E,
		'u': 0x25, 'v': 0x27, 'w': 0x3A, 'x': 0x2D, 'y': 0x3D, 'z': 0x35,
	}
	digitsByLetter := "jabcdefghi" // 0123456789 -> j,a..i
	table := make(map[rune]byte, len(letters)*2+11)
	for r, dots := range letters {
		table[r] = dots
		table[r-'a'+'A'] = dots
	}
	for d, letter := range digitsByLetter {
		table[rune('0'+d)] = letters[letter]
	}
	table[' '] = 0x00
	return table
}
