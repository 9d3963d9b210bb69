// Package health provides health check endpoints for the cluster API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/converter"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
)

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	service string
	deps    map[string]Pinger
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHealthCheck creates a new HealthCheck instance. deps are checked on
// every readiness request.
func NewHealthCheck(service string, deps map[string]Pinger, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		service: service,
		deps:    deps,
		timeout: timeout,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:    "healthy",
		Timestamp: hc.now().UTC().Format(converter.TimestampLayout),
		Service:   hc.service,
	}, hc.logger)
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK when the container engine and the storage gateway both answer.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
	defer cancel()

	checks, ready := hc.check(ctx)
	if hc.metrics != nil {
		hc.metrics.SetHealthStatus(ready)
	}

	resp := ReadinessResponse{Status: "ready", Checks: checks}
	status := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp, hc.logger)
}

func (hc *HealthCheck) check(ctx context.Context) (map[string]string, bool) {
	names := lo.Keys(hc.deps)
	results := make([]string, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = "healthy"
			if err := hc.deps[name].Ping(ctx); err != nil {
				hc.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				results[i] = "unhealthy"
			}
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
	}
	ready := !lo.Contains(results, "unhealthy")
	return checks, ready
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode health response", zap.Error(err))
	}
}
