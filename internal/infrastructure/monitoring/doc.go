// Package monitoring provides Prometheus metrics for the travel client.
//
// Collectors cover the request/response chat path (calls, latency), the
// streaming channel (connection gauge, events by type, dropped frames,
// reconnect attempts) and trip completion. Collectors live on their own
// registry so several clients can coexist in one process (and in tests).
//
// Usage:
//
//	metrics := monitoring.NewMetrics()
//	http.Handle("/metrics", metrics.Handler())
package monitoring
