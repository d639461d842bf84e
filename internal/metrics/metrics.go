// Package metrics holds askdb's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "askdb_build_info",
			Help: "Build information of askdb",
		},
		[]string{"version", "commit"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_sessions_active",
			Help: "Number of open sessions",
		},
	)

	SessionStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_session_starts_total",
			Help: "Session start attempts by dialect and outcome",
		},
		[]string{"dialect", "outcome"},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_questions_total",
			Help: "Answered questions by final status and failure reason",
		},
		[]string{"status", "reason"},
	)

	QuestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_question_duration_seconds",
			Help:    "Wall time to answer one question",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
	)

	AgentSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_agent_steps",
			Help:    "Think/act/observe steps taken per question",
			Buckets: prometheus.LinearBuckets(1, 1, 15),
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_db_query_duration_seconds",
			Help:    "Duration of agent-issued SQL statements",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dialect", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// ObserveQuery records one statement. outcome is "ok" or an error kind.
func ObserveQuery(dialect, outcome string, took time.Duration) {
	DBQueryDuration.WithLabelValues(dialect, outcome).Observe(took.Seconds())
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Route pattern keeps session IDs out of the label set.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
