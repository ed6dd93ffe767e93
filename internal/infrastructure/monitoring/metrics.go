package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all client-side Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Request/response chat path
	ChatRequests *prometheus.CounterVec
	ChatDuration *prometheus.HistogramVec

	// Streaming channel
	StreamConnected  prometheus.Gauge
	StreamEvents     *prometheus.CounterVec
	StreamDropped    *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	StreamSent       prometheus.Counter

	// Trip reconciliation
	TripsCompleted prometheus.Counter
}

// NewMetrics creates collectors registered on a fresh registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates collectors on the given registry
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travel_client_chat_requests_total",
				Help: "Total number of request/response chat calls",
			},
			[]string{"endpoint", "status"},
		),
		ChatDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "travel_client_chat_request_duration_seconds",
				Help:    "Chat call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		StreamConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "travel_client_stream_connected",
				Help: "1 while the streaming channel is open",
			},
		),
		StreamEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travel_client_stream_events_total",
				Help: "Inbound stream events by type",
			},
			[]string{"type"},
		),
		StreamDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travel_client_stream_dropped_frames_total",
				Help: "Inbound frames dropped at the decode boundary",
			},
			[]string{"reason"},
		),
		StreamReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "travel_client_stream_reconnect_attempts_total",
				Help: "Automatic reconnect attempts",
			},
		),
		StreamSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "travel_client_stream_sent_total",
				Help: "Outbound stream frames",
			},
		),

		TripsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "travel_client_trips_completed_total",
				Help: "Times the trip state latched complete",
			},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChatRequest records one chat call
func (m *Metrics) RecordChatRequest(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(endpoint, status).Inc()
	m.ChatDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordStreamEvent counts one decoded inbound event
func (m *Metrics) RecordStreamEvent(eventType string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(eventType).Inc()
}

// RecordDroppedFrame counts one frame rejected at the decode boundary
func (m *Metrics) RecordDroppedFrame(reason string) {
	if m == nil {
		return
	}
	m.StreamDropped.WithLabelValues(reason).Inc()
}

// RecordReconnect counts one automatic reconnect attempt
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// RecordSent counts one outbound frame
func (m *Metrics) RecordSent() {
	if m == nil {
		return
	}
	m.StreamSent.Inc()
}

// SetStreamConnected flips the connection gauge
func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.StreamConnected.Set(1)
	} else {
		m.StreamConnected.Set(0)
	}
}

// IncTripsCompleted counts one completion latch
func (m *Metrics) IncTripsCompleted() {
	if m == nil {
		return
	}
	m.TripsCompleted.Inc()
}
