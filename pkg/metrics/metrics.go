// Package metrics provides the centralized Prometheus registry and exposition
// handler for the proxy. All metrics are defined in their respective packages
// (upstream, store, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the exposition handler served on /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - maple_rate_limit_grants_total (Counter): Tokens granted for upstream calls
//   - maple_rate_limit_blocks_total (Counter): Requests rejected with an exhausted budget
//   - maple_rate_limit_tokens_remaining (Gauge): Grants remaining in the rolling period
//
// Cache Metrics (pkg/store):
//   - maple_cache_hits_total{kind} (Counter): Fresh records served by kind
//   - maple_cache_misses_total{kind} (Counter): Freshness-gated lookups that missed
//   - maple_store_errors_total{operation} (Counter): Storage operation errors
//
// Upstream Metrics (pkg/upstream):
//   - maple_upstream_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - maple_upstream_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - maple_upstream_errors_total{kind} (Counter): Errors by taxonomy kind
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(maple_cache_hits_total[5m])) /
//   (sum(rate(maple_cache_hits_total[5m])) + sum(rate(maple_cache_misses_total[5m])))
//
//   # Remaining Upstream Budget
//   maple_rate_limit_tokens_remaining
//
//   # Upstream Error Rate
//   rate(maple_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(maple_upstream_request_duration_seconds_bucket[5m]))
