// Package adminapi exposes a small read-only net/http + encoding/json API
// for operator introspection: daemon status, connected sessions, and the
// current display contents. It deliberately avoids protobuf/gRPC (this
// protocol's client surface is raw BrlAPI TCP, not RPC) and instead mirrors
// the teacher's logging/recovery interceptor pair as plain middleware.
package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/dantte-lp/brlapid/internal/backend"
	"github.com/dantte-lp/brlapid/internal/display"
	"github.com/dantte-lp/brlapid/internal/session"
)

// SnapshotSource is implemented by a backend that records the latest
// display snapshot it was handed, for /display introspection.
type SnapshotSource interface {
	LatestSnapshot() display.Snapshot
}

// SessionLister reports the currently connected sessions.
type SessionLister interface {
	Len() int
	Snapshot() []session.Stats
}

// Server serves the admin HTTP API.
type Server struct {
	backend   backend.Backend
	sessions  SessionLister
	startedAt time.Time
	log       *slog.Logger
}

// New creates an admin API Server. backend and sessions must not be nil.
func New(be backend.Backend, sessions SessionLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{backend: be, sessions: sessions, startedAt: time.Now(), log: log}
}

// Handler returns the complete admin API handler, wrapped with request
// logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /display", s.handleDisplay)
	return recoveryMiddleware(s.log, loggingMiddleware(s.log, mux))
}

// -------------------------------------------------------------------------
// GET /status
// -------------------------------------------------------------------------

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	DriverName string `json:"driver_name"`
	ModelID    string `json:"model_id"`
	Columns    uint8  `json:"columns"`
	Lines      uint8  `json:"lines"`
	Sessions   int    `json:"sessions"`
	UptimeSec  int64  `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dim := s.backend.Dimensions()
	writeJSON(w, http.StatusOK, StatusResponse{
		DriverName: s.backend.DriverName(),
		ModelID:    s.backend.ModelID(),
		Columns:    dim.Columns,
		Lines:      dim.Lines,
		Sessions:   s.sessions.Len(),
		UptimeSec:  int64(time.Since(s.startedAt).Seconds()),
	})
}

// -------------------------------------------------------------------------
// GET /sessions
// -------------------------------------------------------------------------

// SessionResponse describes one connected session.
type SessionResponse struct {
	RemoteAddr     string `json:"remote_addr"`
	Authenticated  bool   `json:"authenticated"`
	ConnectedSince string `json:"connected_since"`
	PacketsIn      int64  `json:"packets_in"`
	PacketsOut     int64  `json:"packets_out"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	stats := s.sessions.Snapshot()
	resp := make([]SessionResponse, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, SessionResponse{
			RemoteAddr:     st.RemoteAddr,
			Authenticated:  st.Authenticated,
			ConnectedSince: st.ConnectedAt.UTC().Format(time.RFC3339),
			PacketsIn:      st.PacketsIn,
			PacketsOut:     st.PacketsOut,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// -------------------------------------------------------------------------
// GET /display
// -------------------------------------------------------------------------

// DisplayResponse is a JSON rendering of the current display contents.
type DisplayResponse struct {
	Columns uint8   `json:"columns"`
	Lines   uint8   `json:"lines"`
	Cells   []byte  `json:"cells"`
	Cursor  *uint16 `json:"cursor,omitempty"`
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	dim := s.backend.Dimensions()
	snap := latestSnapshot(s.backend)
	writeJSON(w, http.StatusOK, DisplayResponse{
		Columns: dim.Columns,
		Lines:   dim.Lines,
		Cells:   snap.Cells,
		Cursor:  snap.Cursor,
	})
}

// latestSnapshot fetches the most recently published snapshot from a
// backend that exposes one. Backends that don't track snapshots return an
// empty one.
func latestSnapshot(be backend.Backend) display.Snapshot {
	if p, ok := be.(SnapshotSource); ok {
		return p.LatestSnapshot()
	}
	return display.Snapshot{}
}

// -------------------------------------------------------------------------
// Middleware
// -------------------------------------------------------------------------

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("admin request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func recoveryMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				log.Error("panic recovered in admin handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(buf[:n])),
				)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
