// Package metrics provides the centralized Prometheus metrics registry
// for thc-recon. All metrics are defined in their respective packages
// (thc, collector) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and an optional HTTP endpoint for
// all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry. All metrics are
// automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr in a background goroutine. An empty
// addr disables the endpoint. Collection runs are short-lived; the
// server dies with the process.
func Serve(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	go func() {
		logger := log.With().Str("component", "metrics").Logger()
		logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn().Err(err).Msg("Metrics endpoint stopped")
		}
	}()
}

// Metrics Documentation
//
// Lookup Metrics (pkg/thc):
//   - thcrecon_lookup_requests_total{status} (Counter): Lookup requests by HTTP status
//   - thcrecon_lookup_request_duration_seconds (Histogram): Lookup request duration
//   - thcrecon_lookup_errors_total{class} (Counter): Lookup errors by class (not_found, retryable, fatal)
//
// Collection Metrics (pkg/collector):
//   - thcrecon_pages_fetched_total (Counter): Pages fetched across all domains
//   - thcrecon_records_seen_total (Counter): Records seen before deduplication
//   - thcrecon_retries_total (Counter): Retry attempts on transient failures
//   - thcrecon_retries_exhausted_total (Counter): Fetches that failed after the single retry
//   - thcrecon_quota_remaining (Gauge): Hourly request quota last reported by the API
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(thcrecon_lookup_errors_total[5m])
//
//   # P95 Lookup Latency
//   histogram_quantile(0.95, rate(thcrecon_lookup_request_duration_seconds_bucket[5m]))
//
//   # Quota Pressure
//   thcrecon_quota_remaining < 20
//
//   # Retry Rate
//   rate(thcrecon_retries_total[5m])
