package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the booking
// engine. All methods are nil-safe so callers can run without metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	bookingsCreated    prometheus.Counter
	bookingConflicts   prometheus.Counter
	sweeperTransitions *prometheus.CounterVec
	sweepErrors        prometheus.Counter
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	bookingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total bookings created",
	})

	bookingConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Total booking requests rejected for overlap",
	})

	sweeperTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_transitions_total",
		Help: "Lifecycle transitions applied by the sweeper",
	}, []string{"transition"})

	sweepErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_errors_total",
		Help: "Errors encountered during sweep cycles",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, bookingsCreated, bookingConflicts,
		sweeperTransitions, sweepErrors, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		bookingsCreated:    bookingsCreated,
		bookingConflicts:   bookingConflicts,
		sweeperTransitions: sweeperTransitions,
		sweepErrors:        sweepErrors,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// IncBookingCreated counts a successful booking creation.
func (m *MetricsService) IncBookingCreated() {
	if m == nil {
		return
	}
	m.bookingsCreated.Inc()
}

// IncBookingConflict counts a rejected overlapping request.
func (m *MetricsService) IncBookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}

// AddSweeperTransitions counts applied lifecycle transitions by edge name.
func (m *MetricsService) AddSweeperTransitions(transition string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.sweeperTransitions.WithLabelValues(transition).Add(float64(count))
}

// IncSweepError counts a failed sweep step.
func (m *MetricsService) IncSweepError() {
	if m == nil {
		return
	}
	m.sweepErrors.Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func (m *MetricsService) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
