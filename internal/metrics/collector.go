package brlmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/brlapid/internal/wire"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "brlapid"
	subsystem = "server"
)

// Label names for BrlAPI server metrics.
const (
	labelPacketType = "packet_type"
	labelErrorCode  = "error_code"
	labelTable      = "table"
)

// -------------------------------------------------------------------------
// Collector — Prometheus BrlAPI Server Metrics
// -------------------------------------------------------------------------

// Collector holds all BrlAPI server Prometheus metrics.
//
//   - Sessions tracks currently connected clients.
//   - Packet counters track wire traffic by packet type.
//   - ProtocolErrors counts Error replies sent to clients, by error code.
//   - AuthFailures counts rejected authentication attempts.
//   - WriteCommands and SnapshotsPublished track display-actor activity.
//   - TranslationRequests and TranslationLatency track the translator worker.
type Collector struct {
	// Sessions tracks the number of currently connected sessions.
	Sessions prometheus.Gauge

	// PacketsReceived counts packets read from clients, labeled by type.
	PacketsReceived *prometheus.CounterVec

	// PacketsSent counts packets written to clients, labeled by type.
	PacketsSent *prometheus.CounterVec

	// ProtocolErrors counts Error packets sent to clients, labeled by code.
	ProtocolErrors *prometheus.CounterVec

	// AuthFailures counts authentication attempts rejected for a bad key.
	AuthFailures prometheus.Counter

	// WriteCommands counts successfully applied Write requests.
	WriteCommands prometheus.Counter

	// SnapshotsPublished counts display snapshots published by the actor.
	SnapshotsPublished prometheus.Counter

	// TranslationRequests counts calls into the translator worker, labeled
	// by table name.
	TranslationRequests *prometheus.CounterVec

	// TranslationLatency observes translator round-trip latency in seconds,
	// labeled by table name.
	TranslationLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector with all metrics registered against the
// provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "brlapid_server_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.PacketsReceived,
		c.PacketsSent,
		c.ProtocolErrors,
		c.AuthFailures,
		c.WriteCommands,
		c.SnapshotsPublished,
		c.TranslationRequests,
		c.TranslationLatency,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently connected BrlAPI sessions.",
		}),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total packets received from clients, by packet type.",
		}, []string{labelPacketType}),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total packets sent to clients, by packet type.",
		}, []string{labelPacketType}),

		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "protocol_errors_total",
			Help:      "Total Error packets sent to clients, by error code.",
		}, []string{labelErrorCode}),

		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total authentication attempts rejected for a bad key.",
		}),

		WriteCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_commands_total",
			Help:      "Total Write requests successfully applied to the display.",
		}),

		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "snapshots_published_total",
			Help:      "Total display snapshots published by the display actor.",
		}),

		TranslationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "translation_requests_total",
			Help:      "Total translation requests handled by the translator worker, by table.",
		}, []string{labelTable}),

		TranslationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "translation_latency_seconds",
			Help:      "Translator worker round-trip latency in seconds, by table.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelTable}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the connected-sessions gauge.
// The daemon's periodic session-gauge sampler calls it when the
// listener's session registry (which counts accepted connections) grows.
func (c *Collector) RegisterSession() {
	c.Sessions.Inc()
}

// UnregisterSession decrements the connected-sessions gauge.
// The daemon's periodic session-gauge sampler calls it when the
// listener's session registry shrinks.
func (c *Collector) UnregisterSession() {
	c.Sessions.Dec()
}

// -------------------------------------------------------------------------
// Packet Counters
// -------------------------------------------------------------------------

// IncPacketsReceived increments the received-packets counter for t.
func (c *Collector) IncPacketsReceived(t wire.PacketType) {
	c.PacketsReceived.WithLabelValues(t.String()).Inc()
}

// IncPacketsSent increments the sent-packets counter for t.
func (c *Collector) IncPacketsSent(t wire.PacketType) {
	c.PacketsSent.WithLabelValues(t.String()).Inc()
}

// IncProtocolErrors increments the protocol-error counter for code.
// Called every time a session sends an Error packet to its client.
func (c *Collector) IncProtocolErrors(code wire.ErrorCode) {
	c.ProtocolErrors.WithLabelValues(code.String()).Inc()
}

// -------------------------------------------------------------------------
// Authentication
// -------------------------------------------------------------------------

// IncAuthFailures increments the authentication-failure counter.
func (c *Collector) IncAuthFailures() {
	c.AuthFailures.Inc()
}

// -------------------------------------------------------------------------
// Display and Translator Activity
// -------------------------------------------------------------------------

// IncWriteCommands increments the applied-Write counter.
func (c *Collector) IncWriteCommands() {
	c.WriteCommands.Inc()
}

// IncSnapshotsPublished increments the published-snapshot counter.
func (c *Collector) IncSnapshotsPublished() {
	c.SnapshotsPublished.Inc()
}

// ObserveTranslation records one translator round trip against table,
// taking seconds elapsed.
func (c *Collector) ObserveTranslation(table string, seconds float64) {
	c.TranslationRequests.WithLabelValues(table).Inc()
	c.TranslationLatency.WithLabelValues(table).Observe(seconds)
}
