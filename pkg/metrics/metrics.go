// Package metrics exposes the Prometheus metrics of the Placemark client.
// All metrics are defined in their respective packages (client, cache, ratelimit,
// pagination) to maintain modularity and avoid circular dependencies.
//
// This package provides the registry, the scrape handler and a reference of all
// available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/placemark-app/placemark-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Placemark client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Path is where Serve exposes metrics.
const Path = "/metrics"

// Handler returns the HTTP handler serving all client metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	logger := logging.NewLogger("metrics")

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - placemark_rate_limit_remaining (Gauge): Requests remaining in the current window
//   - placemark_rate_limit_blocks_total (Counter): Requests blocked because the budget is used up
//   - placemark_rate_limit_throttles_total (Counter): Requests delayed because the budget is low
//
// Cache Metrics (pkg/cache):
//   - placemark_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - placemark_cache_misses_total (Counter): Cache misses
//   - placemark_cache_size_bytes{layer="redis"} (Gauge): Size of the last stored entry
//   - placemark_304_responses_total (Counter): 304 Not Modified responses
//   - placemark_conditional_requests_total (Counter): Conditional requests sent
//   - placemark_cache_errors_total{operation} (Counter): Cache operation errors
//   - placemark_cache_evictions_total{reason} (Counter): Pages evicted (expired, corrupt, signed_out)
//
// Request Metrics (pkg/client):
//   - placemark_requests_total{route, status} (Counter): Requests by route and HTTP status
//   - placemark_request_duration_seconds{route} (Histogram): Request duration by route
//   - placemark_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - placemark_retries_total{error_class} (Counter): Retry attempts by error class
//   - placemark_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - placemark_retry_exhausted_total{error_class} (Counter): Requests that exhausted their retries
//
// Pagination Metrics (pkg/pagination):
//   - placemark_pagination_pages_total{collection, outcome} (Counter): Page loads (ok, error, stale)
//   - placemark_pagination_items_total{collection} (Counter): Items appended to accumulated lists
//   - placemark_pagination_duplicates_total{collection} (Counter): Items dropped as already present
//   - placemark_pagination_stalled_cursor_total{collection} (Counter): Pages whose next cursor did not advance
//   - placemark_pagination_page_duration_seconds{collection} (Histogram): Page load duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(placemark_cache_hits_total[5m])) /
//   (sum(rate(placemark_cache_hits_total[5m])) + sum(rate(placemark_cache_misses_total[5m])))
//
//   # Failed Page Loads
//   sum by (collection) (rate(placemark_pagination_pages_total{outcome="error"}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(placemark_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(placemark_304_responses_total[5m]) / rate(placemark_requests_total[5m])
