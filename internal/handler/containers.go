package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
)

// ListContainers handles GET /containers requests.
func (h *Handlers) ListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.containers.List(r.Context(), h.markers)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerListResponse(containers))
}

// GetContainerStatus handles GET /containers/{name} requests. A missing
// container is a valid answer, not an error.
func (h *Handlers) GetContainerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolve(w, r)
	if !ok {
		return
	}

	state := h.containers.Status(r.Context(), id.FullName)

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerStatusResponse(id, state))
}

// StartContainer handles POST /containers/{name} requests.
func (h *Handlers) StartContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if h.containers.Status(r.Context(), id.FullName) == engine.StateRunning {
		result := engine.Result{State: engine.StateStarted}
		h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerActionResponse(id, result, "container is already running"))
		return
	}

	result := h.containers.Start(r.Context(), id.FullName)
	h.writeActionResult(w, id, result, "container started")
}

// StopContainer handles DELETE /containers/{name} requests.
func (h *Handlers) StopContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if h.containers.Status(r.Context(), id.FullName) == engine.StateStopped {
		result := engine.Result{State: engine.StateStopped}
		h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerActionResponse(id, result, "container is already stopped"))
		return
	}

	result := h.containers.Stop(r.Context(), id.FullName)
	h.writeActionResult(w, id, result, "container stopped")
}

// GetContainerHealth handles GET /containers/{name}/health requests.
func (h *Handlers) GetContainerHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolve(w, r)
	if !ok {
		return
	}

	report := h.nodes.Check(r.Context(), id)

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerHealthResponse(report))
}

// GetClusterHealth handles GET /cluster/health requests.
func (h *Handlers) GetClusterHealth(w http.ResponseWriter, r *http.Request) {
	report := h.cluster.Check(r.Context())

	h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ClusterHealthResponse(report))
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) (node.Identity, bool) {
	name, err := h.httpToDomain.ContainerName(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return node.Identity{}, false
	}
	return h.resolver.Resolve(name), true
}

// writeActionResult reports a mutation. A failure keeps the action body shape
// and takes its status code from the failure kind.
func (h *Handlers) writeActionResult(w http.ResponseWriter, id node.Identity, result engine.Result, success string) {
	if result.OK() {
		h.writeJSONResponse(w, http.StatusOK, h.domainToHTTP.ContainerActionResponse(id, result, success))
		return
	}

	status := http.StatusInternalServerError
	message := "container operation failed"
	if result.Err != nil {
		status = apierrors.KindToHTTPStatus(result.Err.Kind)
		message = result.Err.Message
	}
	h.logger.Warn("container operation failed",
		zap.String("container", id.FullName),
		zap.String("node_type", id.Type.String()),
		zap.Int("status_code", status),
	)
	h.writeJSONResponse(w, status, h.domainToHTTP.ContainerActionResponse(id, result, message))
}
