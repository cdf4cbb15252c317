// Package metrics provides Prometheus metrics for the docreader server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docreader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_cache_evictions_total",
			Help: "Entries evicted for capacity or expiry",
		},
		[]string{"cache", "reason"},
	)

	// Search metrics
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docreader_search_duration_seconds",
			Help:    "Time to walk the root for a filename search",
			Buckets: prometheus.DefBuckets,
		},
	)

	searchMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docreader_search_matches",
			Help:    "Matches per search before truncation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	searchSkippedDirs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docreader_search_skipped_dirs_total",
			Help: "Directories skipped because they could not be read",
		},
	)

	// Highlight metrics
	highlightFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_highlight_fallbacks_total",
			Help: "Highlight requests rendered as escaped plain text",
		},
		[]string{"reason"},
	)

	highlightEngineInits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_highlight_engine_inits_total",
			Help: "Highlighting engine initialization attempts",
		},
		[]string{"status"},
	)

	// Preferences metrics
	preferenceWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_preference_writes_total",
			Help: "Preference mutations by operation and result",
		},
		[]string{"op", "status"},
	)

	// Watcher metrics
	watcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docreader_watcher_events_total",
			Help: "Filesystem events observed below the root",
		},
		[]string{"op"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func RecordCacheHit(cache string) {
	cacheLookups.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss(cache string) {
	cacheLookups.WithLabelValues(cache, "miss").Inc()
}

// RecordCacheEviction records an eviction; reason is "capacity" or "expired".
func RecordCacheEviction(cache, reason string, n int) {
	cacheEvictions.WithLabelValues(cache, reason).Add(float64(n))
}

// RecordSearch records one completed search walk.
func RecordSearch(duration time.Duration, matches, skipped int) {
	searchDuration.Observe(duration.Seconds())
	searchMatches.Observe(float64(matches))
	searchSkippedDirs.Add(float64(skipped))
}

// RecordHighlightFallback records a plain-text fallback.
func RecordHighlightFallback(reason string) {
	highlightFallbacks.WithLabelValues(reason).Inc()
}

// RecordHighlightInit records an engine initialization attempt.
func RecordHighlightInit(success bool) {
	highlightEngineInits.WithLabelValues(status(success)).Inc()
}

// RecordPreferenceWrite records a preference mutation.
func RecordPreferenceWrite(op string, success bool) {
	preferenceWrites.WithLabelValues(op, status(success)).Inc()
}

// RecordWatcherEvent records a filesystem event.
func RecordWatcherEvent(op string) {
	watcherEvents.WithLabelValues(op).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
// Requests are labelled by their ServeMux pattern to bound cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
