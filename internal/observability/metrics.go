package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the application: the HTTP
// request counters plus the order domain counters consumed by the service
// layer. All methods are nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	receptionsApplied   prometheus.Counter
	overReceiptRejected prometheus.Counter
	conflictsDetected   prometheus.Counter
	sideEffectsSent     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pedidos_http_requests_total",
		Help: "Number of HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pedidos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	receptions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pedidos_receptions_applied_total",
		Help: "Number of reception events applied to an order.",
	})
	overReceipt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pedidos_over_receipt_rejected_total",
		Help: "Number of reception batches rejected for exceeding pending quantity.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pedidos_concurrency_conflicts_total",
		Help: "Number of optimistic lock conflicts detected on order updates.",
	})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pedidos_side_effects_sent_total",
		Help: "Number of side effect commands delivered, by kind.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, receptions, overReceipt, conflicts, sideEffects)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		receptionsApplied:   receptions,
		overReceiptRejected: overReceipt,
		conflictsDetected:   conflicts,
		sideEffectsSent:     sideEffects,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ReceptionApplied increments the applied reception counter.
func (m *Metrics) ReceptionApplied() {
	if m == nil {
		return
	}
	m.receptionsApplied.Inc()
}

// OverReceiptRejected increments the rejected over-receipt counter.
func (m *Metrics) OverReceiptRejected() {
	if m == nil {
		return
	}
	m.overReceiptRejected.Inc()
}

// ConflictDetected increments the optimistic lock conflict counter.
func (m *Metrics) ConflictDetected() {
	if m == nil {
		return
	}
	m.conflictsDetected.Inc()
}

// SideEffectSent counts a delivered side effect command by kind.
func (m *Metrics) SideEffectSent(kind string) {
	if m == nil {
		return
	}
	m.sideEffectsSent.WithLabelValues(kind).Inc()
}

// Registerer exposes the registry for extra metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
