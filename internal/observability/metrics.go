package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeFinished  = "finished"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"

	EventSampling = "sampling"
	EventFinished = "finished"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kiroshi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Generation sessions opened.",
		},
	)
	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "session",
			Name:      "finished_total",
			Help:      "Generation sessions closed, by outcome.",
		},
		[]string{"outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kiroshi",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Generation session wall time in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Generation events delivered, by kind.",
		},
		[]string{"kind"},
	)
	payloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "session",
			Name:      "payload_bytes_total",
			Help:      "RGBA payload bytes received from the backend.",
		},
	)
	backendState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiroshi",
			Subsystem: "backend",
			Name:      "state",
			Help:      "Supervisor state (0 not_started .. 5 stopped).",
		},
	)
	readinessAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiroshi",
			Subsystem: "backend",
			Name:      "readiness_attempts_total",
			Help:      "Backend liveness pings, by result.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sessionsStarted, sessionsFinished, sessionDuration, sessionEvents, payloadBytes,
			backendState, readinessAttempts,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionStarted() {
	RegisterMetrics()
	sessionsStarted.Inc()
}

func RecordSessionFinished(outcome string, duration time.Duration) {
	RegisterMetrics()
	sessionsFinished.WithLabelValues(outcome).Inc()
	sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordSessionEvent(kind string, bytes int) {
	RegisterMetrics()
	sessionEvents.WithLabelValues(kind).Inc()
	payloadBytes.Add(float64(bytes))
}

func SetBackendState(state int) {
	RegisterMetrics()
	backendState.Set(float64(state))
}

func RecordReadinessAttempt(success bool) {
	RegisterMetrics()
	readinessAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}
