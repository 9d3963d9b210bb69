// Package engine provides the container engine control client for the cluster API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
)

// RunState is the observed lifecycle state of a container.
type RunState string

const (
	StateRunning  RunState = "running"
	StateStopped  RunState = "stopped"
	StateNotFound RunState = "not_found"

	// Mutation outcomes.
	StateStarted RunState = "started"
	StateFailed  RunState = "failed"
)

// Result is the outcome of a start or stop call. Err is set when State is StateFailed.
type Result struct {
	State RunState
	Err   *apierrors.Error
}

// OK reports whether the mutation succeeded.
func (r Result) OK() bool {
	return r.State != StateFailed
}

// Container is a summary of one engine container.
type Container struct {
	Name  string `json:"name"`
	State string `json:"status"`
	ID    string `json:"container_id"`
	Image string `json:"image"`
}

// API is the subset of the Docker Engine API the control client uses.
type API interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// Client wraps the engine API with bounded timeouts and error translation.
// A single Client is shared by all requests.
type Client struct {
	api             API
	timeout         time.Duration
	mutationTimeout time.Duration
	stopGrace       time.Duration
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

// NewDockerAPI creates a Docker Engine API client from the environment,
// optionally pinned to cfg.Host and cfg.APIVersion.
func NewDockerAPI(cfg config.DockerConfig) (API, error) {
	opts := []client.Opt{client.FromEnv}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize a docker client: %w", err)
	}
	return c, nil
}

// NewClient creates a control client on top of api.
func NewClient(api API, cfg config.DockerConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	return &Client{
		api:             api,
		timeout:         cfg.Timeout,
		mutationTimeout: cfg.MutationTimeout,
		stopGrace:       cfg.StopGracePeriod,
		metrics:         m,
		logger:          logger,
	}
}

// Close closes the engine connection.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}

// Status returns the run state of the named container. Any failure to get a
// definite answer (error, timeout, malformed response) is reported as not_found.
func (c *Client) Status(ctx context.Context, fullName string) RunState {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	info, err := c.api.ContainerInspect(ctx, fullName)
	c.record("inspect", err, start)

	if err != nil {
		if !errdefs.IsNotFound(err) {
			c.logger.Warn("container inspect failed",
				zap.String("container", fullName),
				zap.Error(err),
			)
		}
		return StateNotFound
	}

	if info.ContainerJSONBase == nil || info.State == nil {
		c.logger.Warn("container inspect returned no state", zap.String("container", fullName))
		return StateNotFound
	}

	if info.State.Running {
		return StateRunning
	}
	return StateStopped
}

// Start issues a single start call for the named container.
func (c *Client) Start(ctx context.Context, fullName string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.mutationTimeout)
	defer cancel()

	start := time.Now()
	err := c.api.ContainerStart(ctx, fullName, container.StartOptions{})
	c.record("start", err, start)

	if err != nil {
		c.logger.Warn("container start failed",
			zap.String("container", fullName),
			zap.Error(err),
		)
		return Result{State: StateFailed, Err: translate(ctx, err, fullName)}
	}

	c.logger.Info("container started", zap.String("container", fullName))
	return Result{State: StateStarted}
}

// Stop issues a single stop call for the named container, giving it the
// configured grace period before the engine kills it.
func (c *Client) Stop(ctx context.Context, fullName string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.mutationTimeout)
	defer cancel()

	grace := int(c.stopGrace / time.Second)
	start := time.Now()
	err := c.api.ContainerStop(ctx, fullName, container.StopOptions{Timeout: &grace})
	c.record("stop", err, start)

	if err != nil {
		c.logger.Warn("container stop failed",
			zap.String("container", fullName),
			zap.Error(err),
		)
		return Result{State: StateFailed, Err: translate(ctx, err, fullName)}
	}

	c.logger.Info("container stopped", zap.String("container", fullName))
	return Result{State: StateStopped}
}

// List returns all containers whose name contains any of markers.
func (c *Client) List(ctx context.Context, markers []string) ([]Container, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	c.record("list", err, start)

	if err != nil {
		c.logger.Warn("container list failed", zap.Error(err))
		return nil, apierrors.Unavailable(apierrors.ErrorCodeEngineUnavailable, "container engine unavailable", err)
	}

	summaries := lo.Map(list, func(item types.Container, _ int) Container {
		return summarize(item)
	})
	return lo.Filter(summaries, func(item Container, _ int) bool {
		return MatchesAny(item.Name, markers)
	}), nil
}

// Ping checks that the engine answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	_, err := c.api.Ping(ctx)
	c.record("ping", err, start)
	if err != nil {
		return apierrors.Unavailable(apierrors.ErrorCodeEngineUnavailable, "container engine unavailable", err)
	}
	return nil
}

// MatchesAny reports whether name contains any marker, case-insensitively.
func MatchesAny(name string, markers []string) bool {
	lower := strings.ToLower(name)
	return lo.ContainsBy(markers, func(marker string) bool {
		return marker != "" && strings.Contains(lower, strings.ToLower(marker))
	})
}

func summarize(item types.Container) Container {
	name := ""
	if len(item.Names) > 0 {
		name = strings.TrimPrefix(item.Names[0], "/")
	}
	id := item.ID
	if len(id) > 12 {
		id = id[:12]
	}
	image := item.Image
	if image == "" {
		image = "unknown"
	}
	return Container{
		Name:  name,
		State: item.State,
		ID:    id,
		Image: image,
	}
}

func (c *Client) record(operation string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errdefs.IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	c.metrics.RecordEngineCall(operation, outcome, time.Since(start))
}

// translate classifies an engine failure.
func translate(ctx context.Context, err error, fullName string) *apierrors.Error {
	switch {
	case errdefs.IsNotFound(err):
		return apierrors.NotFound(apierrors.ErrorCodeContainerNotFound,
			fmt.Sprintf("container '%s' not found", fullName), err)
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return apierrors.Unavailable(apierrors.ErrorCodeEngineUnavailable,
			"container engine did not answer in time", err)
	case client.IsErrConnectionFailed(err), errdefs.IsUnavailable(err):
		return apierrors.Unavailable(apierrors.ErrorCodeEngineUnavailable,
			"container engine unavailable", err)
	default:
		return apierrors.New(apierrors.KindInternal, apierrors.ErrorCodeEngineError,
			"container engine rejected the request", err)
	}
}
