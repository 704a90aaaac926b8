package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the recap studio. They exist
// from package init so instrumented code never checks for nil; Register
// exposes them.
var Metrics = struct {
	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ScriptAttempts   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CachePurged      prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}{
	RunsTotal: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recapstudio_runs_total",
			Help: "Recap runs finished, by outcome.",
		},
		[]string{"outcome"},
	),
	StageDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recapstudio_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	),
	ScriptAttempts: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recapstudio_script_attempts_total",
			Help: "Calls to the text generation API, by result class.",
		},
		[]string{"result"},
	),
	CacheHits: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recapstudio_enrichment_cache_hits_total",
			Help: "Enrichment cache lookups served from the store.",
		},
	),
	CacheMisses: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recapstudio_enrichment_cache_misses_total",
			Help: "Enrichment cache lookups that were absent or expired.",
		},
	),
	CachePurged: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recapstudio_enrichment_cache_purged_total",
			Help: "Expired enrichment cache entries deleted by the janitor.",
		},
	),
	RequestDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recapstudio_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	),
	RequestsInFlight: prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recapstudio_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	),
}

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		Metrics.RunsTotal,
		Metrics.StageDuration,
		Metrics.ScriptAttempts,
		Metrics.CacheHits,
		Metrics.CacheMisses,
		Metrics.CachePurged,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
	)
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, started time.Time) {
	Metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Middleware records request duration and in-flight count. Routes are
// labelled with their chi pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || strings.HasSuffix(r.URL.Path, "/ws") {
			next.ServeHTTP(w, r)
			return
		}

		Metrics.RequestsInFlight.Inc()
		defer Metrics.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		Metrics.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
