package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	verificationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_transitions_total",
			Help: "Verification status transitions by source, target and event.",
		},
		[]string{"from", "to", "event"},
	)

	channelOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_channel_outcomes_total",
			Help: "Terminal outcomes of outreach channel attempts.",
		},
		[]string{"channel", "result"},
	)

	attestations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_attestations_total",
			Help: "Attestation attempts by final result and status.",
		},
		[]string{"result", "status"},
	)

	outreachQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outreach_queue_depth",
		Help: "Verifications waiting for an outreach worker.",
	})
)

var initOnce sync.Once

// Init registers every collector with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			verificationTransitions, channelOutcomes, attestations, outreachQueueDepth,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests. The chi route
// pattern is used as the label so token paths do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func ObserveTransition(from, to, event string) {
	verificationTransitions.WithLabelValues(from, to, event).Inc()
}

func ObserveChannelOutcome(channel, result string) {
	channelOutcomes.WithLabelValues(channel, result).Inc()
}

// ObserveAttestation records an attestation attempt; status is one of
// created, failed or skipped.
func ObserveAttestation(result, status string) {
	attestations.WithLabelValues(result, status).Inc()
}

func SetQueueDepth(n int) {
	outreachQueueDepth.Set(float64(n))
}
