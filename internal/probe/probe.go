// Package probe checks SeaweedFS node liveness with a role-specific HTTP request.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
)

// Verdict is the outcome of a health check.
type Verdict string

const (
	VerdictHealthy   Verdict = "healthy"
	VerdictUnhealthy Verdict = "unhealthy"
	VerdictUnknown   Verdict = "unknown"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusGetter reports container run state.
type StatusGetter interface {
	Status(ctx context.Context, fullName string) engine.RunState
}

// Target is the health endpoint of one node role.
type Target struct {
	Port     int
	Path     string
	Accepted []int
}

// URL returns the endpoint address for host.
func (t Target) URL(host string) string {
	return fmt.Sprintf("http://%s:%d%s", host, t.Port, t.Path)
}

func (t Target) accepts(status int) bool {
	return lo.Contains(t.Accepted, status)
}

// Endpoint returns the health target for a node role. It reports false for
// TypeUnknown, which is never probed.
func Endpoint(t node.Type) (Target, bool) {
	switch t {
	case node.TypeMaster:
		return Target{Port: 9333, Path: "/cluster/status", Accepted: []int{http.StatusOK}}, true
	case node.TypeVolume:
		return Target{Port: 8080, Path: "/status", Accepted: []int{http.StatusOK}}, true
	case node.TypeFiler:
		return Target{Port: 8888, Path: "/", Accepted: []int{http.StatusOK}}, true
	case node.TypeGateway:
		// An unauthenticated request to the gateway root is rejected with 403.
		return Target{Port: 8333, Path: "", Accepted: []int{http.StatusOK, http.StatusForbidden}}, true
	case node.TypeUnknown:
		return Target{}, false
	}
	return Target{}, false
}

// Report is the result of checking one node.
type Report struct {
	Container string
	Verdict   Verdict
	State     engine.RunState
}

// Prober runs node health checks.
type Prober struct {
	status  StatusGetter
	client  Doer
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewProber creates a prober. A nil client gets an *http.Client bounded by timeout.
func NewProber(status StatusGetter, client Doer, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Prober {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Prober{
		status:  status,
		client:  client,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Check reports the health of id. A node that is not running is unhealthy
// without being probed.
func (p *Prober) Check(ctx context.Context, id node.Identity) Report {
	state := p.status.Status(ctx, id.FullName)
	report := Report{Container: id.ShortName, State: state}

	if state != engine.StateRunning {
		report.Verdict = VerdictUnhealthy
		p.record(id.Type, report.Verdict)
		return report
	}

	target, ok := Endpoint(id.Type)
	if !ok {
		report.Verdict = VerdictUnknown
		p.record(id.Type, report.Verdict)
		return report
	}

	report.Verdict = p.probe(ctx, id, target)
	p.record(id.Type, report.Verdict)
	return report
}

func (p *Prober) probe(ctx context.Context, id node.Identity, target Target) Verdict {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := target.URL(id.FullName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn("failed to build probe request", zap.String("container", id.FullName), zap.Error(err))
		return VerdictUnhealthy
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed",
			zap.String("container", id.FullName),
			zap.String("node_type", id.Type.String()),
			zap.Error(err),
		)
		return VerdictUnhealthy
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if !target.accepts(resp.StatusCode) {
		p.logger.Debug("probe rejected",
			zap.String("container", id.FullName),
			zap.String("node_type", id.Type.String()),
			zap.Int("status_code", resp.StatusCode),
		)
		return VerdictUnhealthy
	}
	return VerdictHealthy
}

func (p *Prober) record(t node.Type, v Verdict) {
	if p.metrics != nil {
		p.metrics.RecordProbe(t.String(), string(v))
	}
}
