package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordFeedRun(sourceURL string, duration time.Duration)
	RecordAlertOutcome(sourceURL, outcome string)
	RecordJamOutcome(sourceURL, outcome string)
	RecordDelivery(channel, status string)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordFeedRun(sourceURL string, duration time.Duration) {}
func (m *NoOpMetrics) RecordAlertOutcome(sourceURL, outcome string)           {}
func (m *NoOpMetrics) RecordJamOutcome(sourceURL, outcome string)             {}
func (m *NoOpMetrics) RecordDelivery(channel, status string)                  {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                   {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                 {}
func (m *NoOpMetrics) Handler() http.Handler                                  { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordFeedRun records one full fetch+reconcile cycle for a feed URL
func RecordFeedRun(sourceURL string, duration time.Duration) {
	globalMetrics.RecordFeedRun(sourceURL, duration)
}

// RecordAlertOutcome records a per-alert reconciliation outcome
// (inserted, updated, unchanged, duplicate, skipped)
func RecordAlertOutcome(sourceURL, outcome string) {
	globalMetrics.RecordAlertOutcome(sourceURL, outcome)
}

// RecordJamOutcome records a per-jam reconciliation outcome
func RecordJamOutcome(sourceURL, outcome string) {
	globalMetrics.RecordJamOutcome(sourceURL, outcome)
}

// RecordDelivery records a notification dispatch attempt per channel
func RecordDelivery(channel, status string) {
	globalMetrics.RecordDelivery(channel, status)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
