// Package metrics provides Prometheus metrics for the cluster API.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	requestsInFlight    prometheus.Gauge
	engineCallsTotal    *prometheus.CounterVec
	engineCallDuration  *prometheus.HistogramVec
	probeResultsTotal   *prometheus.CounterVec
	gatewayCallsTotal   *prometheus.CounterVec
	gatewayCallDuration *prometheus.HistogramVec
	bucketAutoHeal      *prometheus.CounterVec
	healthStatus        prometheus.Gauge
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates and registers Prometheus metrics. Registration happens
// once per process; later calls return the same instance.
func NewMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "seaweed_api_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "route", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "seaweed_api_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: latencyBuckets,
				},
				[]string{"method", "route"},
			),
			requestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "seaweed_api_http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),
			engineCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "seaweed_api_engine_calls_total",
					Help: "Total number of container engine API calls",
				},
				[]string{"operation", "outcome"},
			),
			engineCallDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "seaweed_api_engine_call_duration_seconds",
					Help:    "Container engine API call duration in seconds",
					Buckets: latencyBuckets,
				},
				[]string{"operation"},
			),
			probeResultsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "seaweed_api_probe_results_total",
					Help: "Node health probe verdicts",
				},
				[]string{"node_type", "verdict"},
			),
			gatewayCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "seaweed_api_gateway_calls_total",
					Help: "Total number of storage gateway API calls",
				},
				[]string{"operation", "outcome"},
			),
			gatewayCallDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "seaweed_api_gateway_call_duration_seconds",
					Help:    "Storage gateway API call duration in seconds",
					Buckets: latencyBuckets,
				},
				[]string{"operation"},
			),
			bucketAutoHeal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "seaweed_api_bucket_autoheal_total",
					Help: "Buckets created on demand by an object write",
				},
				[]string{"outcome"},
			),
			healthStatus: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "seaweed_api_health_status",
					Help: "Health status of the cluster API (1 = healthy, 0 = unhealthy)",
				},
			),
		}
	})

	return globalMetrics
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	m.requestsInFlight.Dec()
}

// RecordEngineCall records a container engine API call.
func (m *Metrics) RecordEngineCall(operation, outcome string, duration time.Duration) {
	m.engineCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.engineCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProbe records a health probe verdict.
func (m *Metrics) RecordProbe(nodeType, verdict string) {
	m.probeResultsTotal.WithLabelValues(nodeType, verdict).Inc()
}

// RecordGatewayCall records a storage gateway API call.
func (m *Metrics) RecordGatewayCall(operation, outcome string, duration time.Duration) {
	m.gatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.gatewayCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBucketAutoHeal records an on-demand bucket creation.
func (m *Metrics) RecordBucketAutoHeal(outcome string) {
	m.bucketAutoHeal.WithLabelValues(outcome).Inc()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics. Requests are
// labelled with the matched route template so path parameters do not blow up
// label cardinality.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, routeLabel(r), rw.statusCode, time.Since(start))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// metricsResponseWriter wraps http.ResponseWriter to capture metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
