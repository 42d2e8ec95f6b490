package uibridge

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"ttsdeck/internal/orchestrator"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsdeck",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of bridge HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ttsdeck",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of bridge HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsdeck",
			Subsystem: "orchestrator",
			Name:      "polls_total",
			Help:      "Total authoritative model-table polls",
		},
		[]string{"result"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ttsdeck",
			Subsystem: "orchestrator",
			Name:      "commands_total",
			Help:      "Total model lifecycle commands dispatched",
		},
		[]string{"op", "result"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ttsdeck",
			Subsystem: "session",
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of generation requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, pollsTotal, commandsTotal, generationDuration)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// ObserveGeneration records one generation round trip.
func ObserveGeneration(d time.Duration) {
	generationDuration.Observe(d.Seconds())
}

// MetricsPublisher feeds orchestrator events into the Prometheus counters.
// Install it as the orchestrator's EventPublisher.
type MetricsPublisher struct {
	// Next, when set, receives every event after counting.
	Next orchestrator.EventPublisher
}

func (p MetricsPublisher) Publish(e orchestrator.Event) {
	switch e.Name {
	case orchestrator.EventPollOK:
		pollsTotal.WithLabelValues("ok").Inc()
	case orchestrator.EventPollFailed:
		pollsTotal.WithLabelValues("error").Inc()
	case orchestrator.EventCommandDispatched:
		commandsTotal.WithLabelValues(opField(e), "dispatched").Inc()
	case orchestrator.EventCommandFailed:
		commandsTotal.WithLabelValues(opField(e), "failed").Inc()
	}
	if p.Next != nil {
		p.Next.Publish(e)
	}
}

func opField(e orchestrator.Event) string {
	if op, ok := e.Fields["op"].(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
