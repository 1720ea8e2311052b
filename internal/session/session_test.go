package session

import (
	"context"
	"encoding/hex"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dantte-lp/brlapid/internal/display"
	"github.com/dantte-lp/brlapid/internal/keycode"
	"github.com/dantte-lp/brlapid/internal/wire"
)

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, _, text string) (string, error) {
	out := make([]rune, len(text))
	for i, r := range []rune(text) {
		if r == 'A' {
			out[i] = rune(0x2801)
		} else {
			out[i] = 0x2800
		}
	}
	return string(out), nil
}

type noopKeySubscriber struct{}

func (noopKeySubscriber) Subscribe(chan<- keycode.Keycode) int { return 0 }
func (noopKeySubscriber) Unsubscribe(int)                      {}

// testHarness wires a session to an in-memory pipe and a running display
// actor, returning the client side of the pipe for the test to drive.
type testHarness struct {
	client net.Conn
	disp   *display.Actor
	sink   chan display.Snapshot
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg Config, dim display.Dimensions, opts ...Option) *testHarness {
	t.Helper()
	client, server := net.Pipe()

	sink := make(chan display.Snapshot, 16)
	disp := display.New(dim, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx)

	sess := New(server, cfg, disp, fakeTranslator{}, noopKeySubscriber{}, nil, opts...)
	go sess.Serve(ctx)

	t.Cleanup(func() {
		cancel()
		client.Close()
	})
	return &testHarness{client: client, disp: disp, sink: sink, cancel: cancel}
}

func readExactly(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	total := 0
	for total < n {
		m, err := conn.Read(buf[total:])
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		total += m
	}
	return buf
}

// TestScenarioS1VersionHandshake matches S1.
func TestScenarioS1VersionHandshake(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 40, Lines: 1}}, display.Dimensions{Columns: 40, Lines: 1})

	got := readExactly(t, h.client, 12)
	if hex.EncodeToString(got) != "000000040000007600000008" {
		t.Fatalf("version bytes = %x", got)
	}

	h.client.Write(got) // echo the same Version packet back

	auth := readExactly(t, h.client, 12)
	if hex.EncodeToString(auth) != "00000004000000610000004e" {
		t.Fatalf("auth bytes = %x", auth)
	}
}

// TestScenarioS2AuthMismatchThenSuccess matches S2.
func TestScenarioS2AuthMismatchThenSuccess(t *testing.T) {
	h := newHarness(t, Config{AuthKey: "s3cret", Metadata: Metadata{Columns: 1, Lines: 1}}, display.Dimensions{Columns: 1, Lines: 1})

	readExactly(t, h.client, 12) // Version
	h.client.Write(mustHex("000000040000007600000008"))

	authReq := readExactly(t, h.client, 12)
	if hex.EncodeToString(authReq) != "00000004000000610000004b" {
		t.Fatalf("auth request bytes = %x", authReq)
	}

	sendAuth(t, h.client, "wrong")
	errPkt := readExactly(t, h.client, 16)
	if errPkt[11] != byte(wire.ErrorAuthenticationFailed) {
		t.Fatalf("expected AuthenticationFailed, got %x", errPkt)
	}

	sendAuth(t, h.client, "s3cret")
	ack := readExactly(t, h.client, 8)
	if hex.EncodeToString(ack) != "0000000000000041" {
		t.Fatalf("ack bytes = %x", ack)
	}
}

func sendAuth(t *testing.T, conn net.Conn, key string) {
	t.Helper()
	body := append([]byte{0, 0, 0, 0x4b}, append([]byte(key), 0)...)
	buf := encodeLen(uint32(len(body)))
	buf = append(buf, 0, 0, 0, 0x61) // type Auth
	buf = append(buf, body...)
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func encodeLen(n uint32) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// TestScenarioS3GetDisplaySize matches S3.
func TestScenarioS3GetDisplaySize(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 40, Lines: 1}}, display.Dimensions{Columns: 40, Lines: 1})

	readExactly(t, h.client, 12) // Version
	h.client.Write(mustHex("000000040000007600000008"))
	readExactly(t, h.client, 12) // Auth(None)

	h.client.Write(mustHex("0000000000000073")) // GetDisplaySize request
	resp := readExactly(t, h.client, 16)
	if hex.EncodeToString(resp) != "000000080000007300000028"+"00000001" {
		t.Fatalf("response bytes = %x", resp)
	}
}

// TestScenarioS4WriteSingleCellWithCursor matches S4, exercising the
// full Write pipeline through a live session and display actor.
func TestScenarioS4WriteSingleCellWithCursor(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 40, Lines: 1}, TranslationTable: "en-us-comp8.ctb"}, display.Dimensions{Columns: 40, Lines: 1})

	<-h.sink // initial all-zero snapshot

	readExactly(t, h.client, 12) // Version
	h.client.Write(mustHex("000000040000007600000008"))
	readExactly(t, h.client, 12) // Auth(None)

	w := wire.Write{
		HasRegion: true, RegionStart: 1, RegionLength: 1,
		HasText: true, Text: []byte("A"),
		HasCursor: true, Cursor: 1,
	}
	var buf []byte
	encodeWriteForTest(&buf, w)
	h.client.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := h.client.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// SetCursor publishes first, SetBrailleMatrixSection second.
	<-h.sink
	select {
	case snap := <-h.sink:
		if len(snap.Cells) < 1 || snap.Cells[0] != 0xC1 {
			t.Fatalf("final snapshot cell[0] = %+v, want 0xC1", snap)
		}
		if snap.Cursor == nil || *snap.Cursor != 0 {
			t.Fatalf("cursor = %v, want Some(0)", snap.Cursor)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Write snapshot")
	}
}

// encodeWriteForTest builds a raw Write packet using the wire layout
// directly (session tests must not import wire's unexported encoders).
func encodeWriteForTest(buf *[]byte, w wire.Write) {
	var flags uint32
	if w.HasRegion {
		flags |= 1 << 1
	}
	if w.HasText {
		flags |= 1 << 2
	}
	if w.HasCursor {
		flags |= 1 << 5
	}
	var body []byte
	body = append(body, byteN(flags)...)
	if w.HasRegion {
		body = append(body, byteN(w.RegionStart)...)
		body = append(body, byteN(w.RegionLength)...)
	}
	if w.HasText {
		body = append(body, byteN(uint32(len(w.Text)))...)
		body = append(body, w.Text...)
	}
	if w.HasCursor {
		body = append(body, byteN(w.Cursor)...)
	}
	*buf = append(*buf, byteN(uint32(len(body)))...)
	*buf = append(*buf, 0, 0, 0, 0x77) // type Write
	*buf = append(*buf, body...)
}

func byteN(n uint32) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// TestScenarioS5WriteAndOrWithoutRegionClosesSession matches S5 at the
// session boundary: the malformed frame fails to decode and the session
// ends without a response.
func TestScenarioS5WriteAndOrWithoutRegionClosesSession(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 1, Lines: 1}}, display.Dimensions{Columns: 1, Lines: 1})

	readExactly(t, h.client, 12)
	h.client.Write(mustHex("000000040000007600000008"))
	readExactly(t, h.client, 12)

	// Write with And set (flag bit 3) but Region unset, one byte of And data.
	body := append(byteN(1<<3), 0xFF)
	var buf []byte
	buf = append(buf, byteN(uint32(len(body)))...)
	buf = append(buf, 0, 0, 0, 0x77)
	buf = append(buf, body...)
	h.client.SetWriteDeadline(time.Now().Add(2 * time.Second))
	h.client.Write(buf)

	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	one := make([]byte, 1)
	if _, err := h.client.Read(one); err == nil {
		t.Fatalf("expected connection close, got data")
	}
}

// TestBoundaryCursorZeroClearsCursor covers property 10's cursor=0 case.
func TestBoundaryCursorZeroClearsCursor(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 1, Lines: 1}, TranslationTable: "en-us-comp8.ctb"}, display.Dimensions{Columns: 1, Lines: 1})
	<-h.sink

	readExactly(t, h.client, 12)
	h.client.Write(mustHex("000000040000007600000008"))
	readExactly(t, h.client, 12)

	w := wire.Write{HasCursor: true, Cursor: 0}
	var buf []byte
	encodeWriteForTest(&buf, w)
	h.client.SetWriteDeadline(time.Now().Add(2 * time.Second))
	h.client.Write(buf)

	select {
	case snap := <-h.sink:
		if snap.Cursor != nil {
			t.Fatalf("cursor = %v, want nil", *snap.Cursor)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cursor-clear snapshot")
	}
}

// TestBoundaryVersionMismatchCloses covers property 12.
func TestBoundaryVersionMismatchCloses(t *testing.T) {
	h := newHarness(t, Config{Metadata: Metadata{Columns: 1, Lines: 1}}, display.Dimensions{Columns: 1, Lines: 1})

	readExactly(t, h.client, 12)
	h.client.Write(mustHex("0000000400000076ffffffff")) // Version{0xffffffff}

	errPkt := readExactly(t, h.client, 16)
	if errPkt[11] != byte(wire.ErrorBadProtocolVersion) {
		t.Fatalf("expected BadProtocolVersion, got %x", errPkt)
	}

	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	one := make([]byte, 1)
	if _, err := h.client.Read(one); err == nil {
		t.Fatal("expected connection close after bad version, got data")
	}
}

type recordingMetrics struct {
	mu             sync.Mutex
	received       int
	sent           int
	authFailures   int
	protocolErrors map[wire.ErrorCode]int
}

func (m *recordingMetrics) IncPacketsReceived(wire.PacketType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
}

func (m *recordingMetrics) IncPacketsSent(wire.PacketType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *recordingMetrics) IncAuthFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures++
}

func (m *recordingMetrics) IncProtocolErrors(code wire.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.protocolErrors == nil {
		m.protocolErrors = make(map[wire.ErrorCode]int)
	}
	m.protocolErrors[code]++
}

func (m *recordingMetrics) IncWriteCommands() {}

func (m *recordingMetrics) snapshot() (received, sent, authFailures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received, m.sent, m.authFailures
}

func (m *recordingMetrics) protocolErrorCount(code wire.ErrorCode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protocolErrors[code]
}

// TestSessionReportsMetrics verifies a bad auth attempt followed by a
// successful one is reflected in the injected MetricsReporter.
func TestSessionReportsMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	h := newHarness(t, Config{AuthKey: "s3cret", Metadata: Metadata{Columns: 1, Lines: 1}}, display.Dimensions{Columns: 1, Lines: 1}, WithMetrics(rec))

	readExactly(t, h.client, 12) // Version
	h.client.Write(mustHex("000000040000007600000008"))
	readExactly(t, h.client, 12) // AuthRequest

	sendAuth(t, h.client, "wrong")
	readExactly(t, h.client, 16) // Error

	sendAuth(t, h.client, "s3cret")
	readExactly(t, h.client, 8) // Ack

	received, sent, authFailures := rec.snapshot()
	if authFailures != 1 {
		t.Fatalf("authFailures = %d, want 1", authFailures)
	}
	if received == 0 || sent == 0 {
		t.Fatalf("received = %d, sent = %d, want both > 0", received, sent)
	}
	if n := rec.protocolErrorCount(wire.ErrorAuthenticationFailed); n != 1 {
		t.Fatalf("protocolErrors[AuthenticationFailed] = %d, want 1", n)
	}
}

// TestSessionReportsProtocolErrorOnBadVersion verifies a rejected Version
// packet is reflected in the injected MetricsReporter's protocol-error
// counter, labelled by ErrorCode.
func TestSessionReportsProtocolErrorOnBadVersion(t *testing.T) {
	rec := &recordingMetrics{}
	h := newHarness(t, Config{Metadata: Metadata{Columns: 1, Lines: 1}}, display.Dimensions{Columns: 1, Lines: 1}, WithMetrics(rec))

	readExactly(t, h.client, 12) // Version
	h.client.Write(mustHex("0000000400000076ffffffff"))

	readExactly(t, h.client, 16) // Error

	if n := rec.protocolErrorCount(wire.ErrorBadProtocolVersion); n != 1 {
		t.Fatalf("protocolErrors[BadProtocolVersion] = %d, want 1", n)
	}
}
