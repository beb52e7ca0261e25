package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

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
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reftracker_ready",
		Help: "1 when the storage backend answered the last readiness probe.",
	})

	stakeholdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reftracker_stakeholders_created_total",
			Help: "Stakeholders created, by type.",
		},
		[]string{"type"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reftracker_status_transitions_total",
			Help: "Committed stakeholder status transitions.",
		},
		[]string{"from", "to"},
	)

	transitionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reftracker_status_transition_rejections_total",
			Help: "Status change requests rejected by the lifecycle service, by error code.",
		},
		[]string{"code"},
	)

	auditRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reftracker_audit_records_total",
			Help: "Audit records committed, by action.",
		},
		[]string{"action"},
	)

	initOnce sync.Once
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration, readyGauge,
			stakeholdersCreated, statusTransitions, transitionRejections, auditRecords,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the outcome of the last readiness probe.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// StakeholderCreated counts a committed create.
func StakeholderCreated(kind string) {
	stakeholdersCreated.WithLabelValues(kind).Inc()
}

// StatusTransition counts a committed status change.
func StatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// TransitionRejected counts a status change that failed with the given error code.
func TransitionRejected(code string) {
	transitionRejections.WithLabelValues(code).Inc()
}

// AuditRecorded counts a committed audit record.
func AuditRecorded(action string) {
	auditRecords.WithLabelValues(action).Inc()
}

// Instrument measures request rate, latency and concurrency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// otherPath labels every request outside the known routes.
const otherPath = "other"

var knownPaths = map[string]struct{}{
	"/api/health":              {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/v1/info":                 {},
	"/api/stakeholders":        {},
	"/api/stakeholders/events": {},
}

// CanonicalPath collapses identifiers and unknown routes so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	const prefix = "/api/stakeholders/"
	if !strings.HasPrefix(path, prefix) {
		return otherPath
	}
	rest := strings.Split(strings.TrimPrefix(path, prefix), "/")
	switch {
	case len(rest) == 1 && rest[0] != "":
		return prefix + ":id"
	case len(rest) == 2 && rest[0] != "" && rest[1] == "status":
		return prefix + ":id/status"
	default:
		return otherPath
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
