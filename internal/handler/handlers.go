// Package handler provides HTTP request handlers for the cluster API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/cluster"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/converter"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/objectstore"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/probe"
)

// ContainerService queries and mutates container run state.
type ContainerService interface {
	Status(ctx context.Context, fullName string) engine.RunState
	Start(ctx context.Context, fullName string) engine.Result
	Stop(ctx context.Context, fullName string) engine.Result
	List(ctx context.Context, markers []string) ([]engine.Container, error)
}

// NodeChecker checks the health of one node.
type NodeChecker interface {
	Check(ctx context.Context, id node.Identity) probe.Report
}

// ClusterChecker checks the health of every known node.
type ClusterChecker interface {
	Check(ctx context.Context) cluster.Report
}

// ObjectStore performs bucket and object operations against the storage gateway.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]objectstore.Bucket, error)
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket string) ([]objectstore.Object, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) (*objectstore.PutResult, error)
	GetObject(ctx context.Context, bucket, key string) (*objectstore.ObjectData, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListOperations(ctx context.Context, since string) ([]objectstore.Operation, error)
}

// Dependencies groups the collaborators the handlers dispatch to.
type Dependencies struct {
	Resolver   *node.Resolver
	Containers ContainerService
	Nodes      NodeChecker
	Cluster    ClusterChecker
	Objects    ObjectStore
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	resolver     *node.Resolver
	containers   ContainerService
	nodes        NodeChecker
	cluster      ClusterChecker
	objects      ObjectStore
	markers      []string
	httpToDomain *converter.HTTPToDomain
	domainToHTTP *converter.DomainToHTTP
	errorHandler *apierrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Dependencies, errorHandler *apierrors.Handler, logger *zap.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		resolver:     deps.Resolver,
		containers:   deps.Containers,
		nodes:        deps.Nodes,
		cluster:      deps.Cluster,
		objects:      deps.Objects,
		markers:      cfg.Cluster.Markers,
		httpToDomain: converter.NewHTTPToDomain(cfg.Gateway.MaxObjectSize),
		domainToHTTP: converter.NewDomainToHTTP(cfg.Gateway.PreviewLength),
		errorHandler: errorHandler,
		logger:       logger,
	}
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
