// Package session implements the per-connection BrlAPI state machine:
// version handshake, shared-key authentication, and the request
// dispatch loop, including the Write-to-display pipeline.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dantte-lp/brlapid/internal/display"
	"github.com/dantte-lp/brlapid/internal/keycode"
	"github.com/dantte-lp/brlapid/internal/wire"
)

// DefaultKeycodeQueueSize bounds a session's subscription channel for
// broadcast keycodes.
const DefaultKeycodeQueueSize = 32

// Translator is the subset of internal/translate.Worker the session
// depends on.
type Translator interface {
	Translate(ctx context.Context, table, text string) (string, error)
}

// KeySubscriber lets a session register to receive every keycode the
// backend emits, for as long as the session is authenticated.
type KeySubscriber interface {
	Subscribe(ch chan<- keycode.Keycode) int
	Unsubscribe(id int)
}

// MetricsReporter receives session-lifecycle events for Prometheus
// instrumentation. All methods must be safe for concurrent use.
type MetricsReporter interface {
	IncPacketsReceived(t wire.PacketType)
	IncPacketsSent(t wire.PacketType)
	IncProtocolErrors(code wire.ErrorCode)
	IncAuthFailures()
	IncWriteCommands()
}

type noopMetrics struct{}

func (noopMetrics) IncPacketsReceived(wire.PacketType) {}
func (noopMetrics) IncPacketsSent(wire.PacketType)      {}
func (noopMetrics) IncProtocolErrors(wire.ErrorCode)    {}
func (noopMetrics) IncAuthFailures()                    {}
func (noopMetrics) IncWriteCommands()                   {}

// Option configures optional Session parameters.
type Option func(*Session)

// WithMetrics sets the MetricsReporter a Session reports packet, auth and
// write activity to. Omitting it leaves metrics reporting a no-op.
func WithMetrics(m MetricsReporter) Option {
	return func(s *Session) { s.metrics = m }
}

// Metadata is the cached, static backend identity a session answers
// GetDriverName/GetModelId/GetDisplaySize from.
type Metadata struct {
	DriverName string
	ModelID    string
	Columns    uint8
	Lines      uint8
}

// Config configures one session's behaviour.
type Config struct {
	// AuthKey is the configured shared secret. Empty means AuthNone:
	// every client is accepted without a key exchange.
	AuthKey string
	// TranslationTable names the table passed to the translator for
	// every Write with text.
	TranslationTable string
	Metadata         Metadata
}

// Session drives one accepted connection through the protocol state
// machine until it closes.
type Session struct {
	conn net.Conn
	log  *slog.Logger
	cfg  Config

	disp       *display.Actor
	translator Translator
	keySub     KeySubscriber
	metrics    MetricsReporter

	writeMu sync.Mutex

	connectedAt   time.Time
	packetsIn     atomic.Int64
	packetsOut    atomic.Int64
	authenticated atomic.Bool
}

// New creates a session for an accepted connection. disp and translator
// are shared across every session; keySub may be nil, in which case the
// session never receives broadcast keycodes.
func New(conn net.Conn, cfg Config, disp *display.Actor, translator Translator, keySub KeySubscriber, log *slog.Logger, opts ...Option) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		conn:        conn,
		log:         log,
		cfg:         cfg,
		disp:        disp,
		translator:  translator,
		keySub:      keySub,
		metrics:     noopMetrics{},
		connectedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats is a point-in-time snapshot of a session's admin-visible state.
type Stats struct {
	RemoteAddr    string
	ConnectedAt   time.Time
	Authenticated bool
	PacketsIn     int64
	PacketsOut    int64
}

// Stats returns the session's current admin-visible state.
func (s *Session) Stats() Stats {
	return Stats{
		RemoteAddr:    s.conn.RemoteAddr().String(),
		ConnectedAt:   s.connectedAt,
		Authenticated: s.authenticated.Load(),
		PacketsIn:     s.packetsIn.Load(),
		PacketsOut:    s.packetsOut.Load(),
	}
}

// Serve runs the session to completion: handshake, auth, then dispatch,
// until the connection closes or ctx is cancelled. It always closes the
// underlying connection before returning.
func (s *Session) Serve(ctx context.Context) {
	defer s.conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-stop:
		}
	}()

	if err := s.greet(); err != nil {
		s.logClose("greeting", err)
		return
	}

	versionOK, err := s.negotiateVersion()
	if err != nil {
		s.logClose("version negotiation", err)
		return
	}
	if !versionOK {
		return
	}

	authOK, err := s.authenticate()
	if err != nil {
		s.logClose("authentication", err)
		return
	}
	if !authOK {
		return
	}

	s.dispatch(ctx)
}

func (s *Session) greet() error {
	return s.send(wire.Version{Version: wire.ProtocolVersion})
}

// negotiateVersion reads the client's Version packet. The bool return
// is false when the session has already been terminated (bad version).
func (s *Session) negotiateVersion() (bool, error) {
	pkt, err := s.recv()
	if err != nil {
		return false, err
	}
	v, ok := pkt.Payload.(wire.Version)
	if !ok || v.Version != wire.ProtocolVersion {
		_ = s.sendError(wire.ErrorBadProtocolVersion, pkt.Type)
		return false, nil
	}
	return true, nil
}

// authenticate runs the AwaitingAuth state. The bool return is false
// when the session has already been terminated (an unexpected packet
// type), true once the client is authenticated.
func (s *Session) authenticate() (bool, error) {
	if s.cfg.AuthKey == "" {
		if err := s.send(wire.AuthRequest{Types: []wire.AuthType{wire.AuthNone}}); err != nil {
			return false, err
		}
		s.authenticated.Store(true)
		return true, nil
	}

	if err := s.send(wire.AuthRequest{Types: []wire.AuthType{wire.AuthKey}}); err != nil {
		return false, err
	}

	for {
		pkt, err := s.recv()
		if err != nil {
			return false, err
		}
		resp, ok := pkt.Payload.(wire.AuthResponse)
		if !ok {
			return false, s.sendError(wire.ErrorBadProtocolVersion, pkt.Type)
		}
		if subtle.ConstantTimeCompare([]byte(s.cfg.AuthKey), resp.Key) != 1 {
			s.metrics.IncAuthFailures()
			if err := s.sendError(wire.ErrorAuthenticationFailed, pkt.Type); err != nil {
				return false, err
			}
			continue
		}
		if err := s.send(wire.Ack{}); err != nil {
			return false, err
		}
		s.authenticated.Store(true)
		return true, nil
	}
}

func (s *Session) dispatch(ctx context.Context) {
	var keyCh chan keycode.Keycode
	var subID int
	if s.keySub != nil {
		keyCh = make(chan keycode.Keycode, DefaultKeycodeQueueSize)
		subID = s.keySub.Subscribe(keyCh)
		defer s.keySub.Unsubscribe(subID)

		stop := make(chan struct{})
		defer close(stop)
		go s.forwardKeys(keyCh, stop)
	}

	for {
		pkt, err := s.recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logClose("dispatch", err)
			}
			return
		}
		if err := s.handle(ctx, pkt); err != nil {
			s.logClose("handling packet", err)
			return
		}
	}
}

// forwardKeys relays broadcast keycodes to the client as Key packets
// until stop closes. A send failure ends the session on the next
// dispatch-loop read (the socket is already unusable).
func (s *Session) forwardKeys(keyCh <-chan keycode.Keycode, stop <-chan struct{}) {
	for {
		select {
		case k := <-keyCh:
			if err := s.send(wire.Key{Key: k}); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// handle processes one Dispatch-state packet. A returned error means
// the connection is no longer usable and the session should end.
func (s *Session) handle(ctx context.Context, pkt *wire.Packet) error {
	switch p := pkt.Payload.(type) {
	case wire.GetDriverNameRequest:
		return s.send(wire.GetDriverNameResponse{Name: s.cfg.Metadata.DriverName})
	case wire.GetModelIDRequest:
		return s.send(wire.GetModelIDResponse{ModelID: s.cfg.Metadata.ModelID})
	case wire.GetDisplaySizeRequest:
		return s.send(wire.GetDisplaySizeResponse{
			Width:  uint32(s.cfg.Metadata.Columns),
			Height: uint32(s.cfg.Metadata.Lines),
		})
	case wire.Write:
		if err := s.handleWrite(ctx, p); err != nil {
			if errors.Is(err, ErrInvalidCharset) {
				return s.sendError(wire.ErrorInvalidParameter, pkt.Type)
			}
			return err
		}
		return nil
	default:
		if pkt.Type.Known() {
			return s.send(wire.Ack{})
		}
		return s.sendError(wire.ErrorUnknownInstruction, pkt.Type)
	}
}

// handleWrite implements the Write-to-display pipeline: decode text,
// translate, apply and/or masks, then hand the result to the display
// actor.
func (s *Session) handleWrite(ctx context.Context, w wire.Write) error {
	start, length := writeRegion(w)

	cells := make([]byte, length)
	if w.HasText {
		charset := ""
		if w.HasCharset {
			charset = string(w.Charset)
		}
		text, err := decodeText(w.Text, charset)
		if err != nil {
			return err
		}
		translated, err := s.translator.Translate(ctx, s.cfg.TranslationTable, text)
		if err != nil {
			return fmt.Errorf("session: translate: %w", err)
		}
		for i, r := range []rune(translated) {
			if i >= len(cells) {
				break
			}
			cells[i] = byte(r - 0x2800)
		}
	}
	if w.HasAnd {
		for i := range cells {
			if i < len(w.And) {
				cells[i] &= w.And[i]
			}
		}
	}
	if w.HasOr {
		for i := range cells {
			if i < len(w.Or) {
				cells[i] |= w.Or[i]
			}
		}
	}

	if w.HasCursor {
		var pos *uint16
		if w.Cursor != 0 {
			p := uint16(w.Cursor - 1)
			pos = &p
		}
		if err := s.disp.SetCursor(ctx, pos); err != nil {
			return fmt.Errorf("session: SetCursor: %w", err)
		}
	}

	if length != 0 {
		if err := s.disp.SetBrailleMatrixSection(ctx, uint16(start), uint16(length), cells); err != nil {
			return fmt.Errorf("session: SetBrailleMatrixSection: %w", err)
		}
	}
	s.metrics.IncWriteCommands()
	return nil
}

// writeRegion computes the effective (start, length) for a Write,
// converting the wire's 1-based region start to a 0-based index.
func writeRegion(w wire.Write) (start, length uint32) {
	switch {
	case w.HasRegion:
		return w.RegionStart - 1, w.RegionLength
	case w.HasText:
		return 0, uint32(len(w.Text))
	default:
		return 0, 0
	}
}

// sendError sends an ErrorPacket and records it against the protocol-error
// counter, labelled by code.
func (s *Session) sendError(code wire.ErrorCode, offending wire.PacketType) error {
	s.metrics.IncProtocolErrors(code)
	return s.send(wire.ErrorPacket{Code: code, OffendingType: offending})
}

func (s *Session) send(p wire.Payload) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wire.Encode(s.conn, &wire.Packet{Type: p.Type(), Payload: p}); err != nil {
		return err
	}
	s.packetsOut.Add(1)
	s.metrics.IncPacketsSent(p.Type())
	return nil
}

func (s *Session) recv() (*wire.Packet, error) {
	pkt, err := wire.Decode(s.conn, wire.FromClient)
	if err != nil {
		return nil, err
	}
	s.packetsIn.Add(1)
	s.metrics.IncPacketsReceived(pkt.Type)
	return pkt, nil
}

func (s *Session) logClose(stage string, err error) {
	if errors.Is(err, io.EOF) {
		return
	}
	isProtocolErr := errors.Is(err, wire.ErrInvalidPacket) ||
		errors.Is(err, wire.ErrUnknownMagic) ||
		errors.Is(err, wire.ErrUnexpectedEOF)
	if isProtocolErr {
		s.log.Debug("session closing on protocol error", slog.String("stage", stage), slog.Any("error", err))
		return
	}
	s.log.Warn("session closing on transport error", slog.String("stage", stage), slog.Any("error", err))
}
