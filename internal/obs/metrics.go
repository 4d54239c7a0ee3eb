package obs

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client-side API metrics
var (
	apiInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_api_in_flight_requests",
		Help: "In-flight requests to the marketplace API.",
	})

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_requests_total",
			Help: "Total requests issued to the marketplace API.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_api_request_duration_seconds",
			Help:    "Marketplace API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	chatTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_chat_transitions_total",
			Help: "Messaging session state transitions.",
		},
		[]string{"from", "to"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(apiInFlight, apiRequestsTotal, apiRequestDuration, chatTransitionsTotal)
}

// ObserveRequest records a completed API call.
func ObserveRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	canonical := CanonicalPath(path)
	apiRequestsTotal.WithLabelValues(method, canonical, code).Inc()
	apiRequestDuration.WithLabelValues(method, canonical, code).Observe(d.Seconds())
}

// RequestStarted marks a request in flight; the returned func marks it done.
func RequestStarted() func() {
	apiInFlight.Inc()
	return apiInFlight.Dec
}

// ObserveChatTransition records a messaging session state change.
func ObserveChatTransition(from, to string) {
	chatTransitionsTotal.WithLabelValues(from, to).Inc()
}

var idSegment = regexp.MustCompile(`^[0-9a-fA-F-]{8,}$|^[0-9]+$|^[0-9A-HJKMNP-TV-Z]{26}$`)

// CanonicalPath collapses identifier segments so metric cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	out := make([]byte, 0, len(path))
	start := 0
	for start < len(path) {
		if path[start] != '/' {
			start++
			continue
		}
		end := start + 1
		for end < len(path) && path[end] != '/' {
			end++
		}
		seg := path[start+1 : end]
		out = append(out, '/')
		if idSegment.MatchString(seg) {
			out = append(out, []byte(":id")...)
		} else {
			out = append(out, []byte(seg)...)
		}
		start = end
	}
	if len(out) == 0 {
		return "/"
	}
	return string(out)
}
