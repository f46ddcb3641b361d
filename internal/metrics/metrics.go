package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the pipeline counters to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	catalogRequests *prometheus.CounterVec
	reconcileGames  *prometheus.CounterVec
	enrichments     *prometheus.CounterVec
	persistFailures prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewRecorder builds a Recorder on its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matatena_catalog_requests_total",
			Help: "Requests made to the BGG XML API by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		reconcileGames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matatena_reconcile_games_total",
			Help: "Games seen by reconciliation, split by cache result.",
		}, []string{"source"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matatena_description_fetches_total",
			Help: "Description enrichment attempts by outcome.",
		}, []string{"outcome"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matatena_persist_failures_total",
			Help: "Game records that could not be written to the cache store.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matatena_http_requests_total",
			Help: "HTTP requests served by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matatena_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		r.catalogRequests,
		r.reconcileGames,
		r.enrichments,
		r.persistFailures,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler returns the /metrics exposition handler.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (tests gather from it).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) CatalogRequest(endpoint, outcome string) {
	if r == nil {
		return
	}
	r.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (r *Recorder) CacheHits(n int) {
	if r == nil || n == 0 {
		return
	}
	r.reconcileGames.WithLabelValues("cache").Add(float64(n))
}

func (r *Recorder) CacheMisses(n int) {
	if r == nil || n == 0 {
		return
	}
	r.reconcileGames.WithLabelValues("catalog").Add(float64(n))
}

func (r *Recorder) Enrichment(outcome string) {
	if r == nil {
		return
	}
	r.enrichments.WithLabelValues(outcome).Inc()
}

func (r *Recorder) PersistFailure() {
	if r == nil {
		return
	}
	r.persistFailures.Inc()
}

// HTTPRequest records one served request.
func (r *Recorder) HTTPRequest(route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
