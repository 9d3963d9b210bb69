package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/errdefs"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/cluster"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/handler"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/health"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/mocks"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/objectstore"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/probe"
)

type okDoer struct{}

func (okDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
}

type testEnv struct {
	server  *Server
	handler http.Handler
	docker  *mocks.MockDockerAPI
	s3      *mocks.FakeS3
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ServiceName:    "SeaweedFS Cluster API",
			RequestTimeout: 5 * time.Second,
		},
		Docker: config.DockerConfig{
			Timeout:         time.Second,
			MutationTimeout: 2 * time.Second,
			StopGracePeriod: time.Second,
		},
		Probe: config.ProbeConfig{Timeout: time.Second},
		Cluster: config.ClusterConfig{
			Markers:           []string{"master", "volume", "filer", "s3"},
			HealthConcurrency: 2,
		},
		Gateway: config.GatewayConfig{
			Timeout:       time.Second,
			MaxObjectSize: 1 << 20,
			PreviewLength: 500,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop()
	m := metrics.NewMetrics()

	docker := new(mocks.MockDockerAPI)
	fakeS3 := mocks.NewFakeS3()

	table := node.NewTable(map[string]string{
		"master1": "seaweedfs-master1",
		"volume1": "seaweedfs-volume1",
	})
	engineClient := engine.NewClient(docker, cfg.Docker, m, logger)
	prober := probe.NewProber(engineClient, okDoer{}, cfg.Probe.Timeout, m, logger)
	gateway := objectstore.NewGateway(fakeS3, cfg.Gateway, m, logger)

	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(handler.Dependencies{
		Resolver:   node.NewResolver(table),
		Containers: engineClient,
		Nodes:      prober,
		Cluster:    cluster.NewAggregator(table, prober, cfg.Cluster.HealthConcurrency, logger),
		Objects:    gateway,
	}, errorHandler, logger, cfg)
	healthCheck := health.NewHealthCheck(cfg.Server.ServiceName, map[string]health.Pinger{
		"engine":  engineClient,
		"gateway": gateway,
	}, time.Second, m, logger)

	srv := NewServer(cfg, handlers, healthCheck, errorHandler, m, logger)
	srv.SetupRoutes()

	return &testEnv{server: srv, handler: srv.GetHandler(), docker: docker, s3: fakeS3}
}

func (e *testEnv) running(fullName string, running bool) {
	e.docker.On("ContainerInspect", mock.Anything, fullName).Return(mocks.InspectResult(fullName, running), nil).Maybe()
}

func (e *testEnv) missing(fullName string) {
	e.docker.On("ContainerInspect", mock.Anything, fullName).
		Return(types.ContainerJSON{}, errdefs.NotFound(errors.New("No such container: "+fullName))).Maybe()
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, httptest.NewRequest(method, target, reader))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRoutes_BothPrefixesBehaveIdentically(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-master1", true)

	bare := env.do(http.MethodGet, "/containers/master1", "")
	prefixed := env.do(http.MethodGet, "/api/containers/master1", "")

	require.Equal(t, http.StatusOK, bare.Code)
	assert.Equal(t, bare.Code, prefixed.Code)
	assert.JSONEq(t, bare.Body.String(), prefixed.Body.String())

	body := decode(t, bare)
	assert.Equal(t, "master1", body["container"])
	assert.Equal(t, "seaweedfs-master1", body["full_name"])
	assert.Equal(t, "master", body["node_type"])
	assert.Equal(t, "running", body["status"])
}

func TestRoutes_EveryRouteIsServedUnderEveryPrefix(t *testing.T) {
	env := newTestEnv(t)
	router := env.server.router
	replacer := strings.NewReplacer("{name}", "master1", "{bucket}", "demo", "{key:.+}", "a/b.txt")

	for _, prefix := range Prefixes {
		for _, route := range env.server.Routes() {
			req := httptest.NewRequest(route.Method, prefix+replacer.Replace(route.Path), nil)
			var match mux.RouteMatch
			ok := router.Match(req, &match)
			assert.True(t, ok && match.MatchErr == nil && match.Route != nil, "%s %s%s", route.Method, prefix, route.Path)
		}
	}
}

func TestUnknownNode(t *testing.T) {
	env := newTestEnv(t)
	env.missing("unknownnode")

	status := env.do(http.MethodGet, "/api/containers/unknownnode", "")
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, "not_found", decode(t, status)["status"])
	assert.Equal(t, "unknown", decode(t, status)["node_type"])

	healthResp := env.do(http.MethodGet, "/api/containers/unknownnode/health", "")
	require.Equal(t, http.StatusOK, healthResp.Code)
	body := decode(t, healthResp)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "not_found", body["overall_status"])
}

func TestContainerHealth_Healthy(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-volume1", true)

	body := decode(t, env.do(http.MethodGet, "/containers/volume1/health", ""))

	assert.Equal(t, map[string]any{"container": "volume1", "status": "healthy", "overall_status": "running"}, body)
}

func TestStartContainer_AlreadyRunningShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-master1", true)

	w := env.do(http.MethodPost, "/api/containers/master1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "started", decode(t, w)["status"])
	env.docker.AssertNotCalled(t, "ContainerStart", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartContainer_Stopped(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-master1", false)
	env.docker.On("ContainerStart", mock.Anything, "seaweedfs-master1", mock.Anything).Return(nil).Once()

	w := env.do(http.MethodPost, "/containers/master1", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, "master1", body["container"])
	env.docker.AssertExpectations(t)
}

func TestStartContainer_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.missing("ghost")
	env.docker.On("ContainerStart", mock.Anything, "ghost", mock.Anything).
		Return(errdefs.NotFound(errors.New("No such container: ghost")))

	w := env.do(http.MethodPost, "/containers/ghost", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "container 'ghost' not found", body["message"])
}

func TestStopContainer_AlreadyStoppedShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-volume1", false)

	w := env.do(http.MethodDelete, "/containers/volume1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
	env.docker.AssertNotCalled(t, "ContainerStop", mock.Anything, mock.Anything, mock.Anything)
}

func TestStopContainer_Running(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-volume1", true)
	env.docker.On("ContainerStop", mock.Anything, "seaweedfs-volume1", mock.Anything).Return(nil).Once()

	w := env.do(http.MethodDelete, "/api/containers/volume1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
}

func TestInvalidContainerName(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/containers/-bad", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidInput", decode(t, w)["kind"])
}

func TestEmptyContainerName(t *testing.T) {
	env := newTestEnv(t)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		w := env.do(method, "/api/containers/", "")

		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		body := decode(t, w)
		assert.Equal(t, "InvalidInput", body["kind"])
		assert.Equal(t, "container name is required", body["message"])
	}
	env.docker.AssertNotCalled(t, "ContainerInspect", mock.Anything, mock.Anything)
}

func TestListContainers(t *testing.T) {
	env := newTestEnv(t)
	env.docker.On("ContainerList", mock.Anything, mock.Anything).Return([]types.Container{
		{Names: []string{"/seaweedfs-master1"}, ID: "0123456789abcdef", Image: "chrislusf/seaweedfs", State: "running"},
		{Names: []string{"/grafana"}, ID: "fedcba9876543210", Image: "grafana/grafana", State: "running"},
	}, nil)

	body := decode(t, env.do(http.MethodGet, "/api/containers", ""))

	containers := body["containers"].([]any)
	require.Len(t, containers, 1)
	assert.Equal(t, map[string]any{
		"name":         "seaweedfs-master1",
		"status":       "running",
		"container_id": "0123456789ab",
		"image":        "chrislusf/seaweedfs",
	}, containers[0])
}

func TestListContainers_EngineDown(t *testing.T) {
	env := newTestEnv(t)
	env.docker.On("ContainerList", mock.Anything, mock.Anything).Return(nil, errors.New("dial unix /var/run/docker.sock: connect: no such file"))

	w := env.do(http.MethodGet, "/containers", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "docker.sock")
}

func TestClusterHealth(t *testing.T) {
	env := newTestEnv(t)
	env.running("seaweedfs-master1", true)
	env.running("seaweedfs-volume1", false)

	body := decode(t, env.do(http.MethodGet, "/api/cluster/health", ""))

	assert.Equal(t, map[string]any{"healthy": 1.0, "unhealthy": 1.0, "unknown": 0.0}, body["summary"])
	assert.Len(t, body["nodes"], 2)
}

func TestPutObject_SizeHintWithEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/s3/buckets/demo/objects/file.txt?size_kb=1", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "demo", body["bucket"])
	assert.Equal(t, "file.txt", body["key"])
	assert.Equal(t, 1024.0, body["size"])

	// The bucket did not exist and was created by the write.
	assert.True(t, env.s3.HasBucket("demo"))
}

func TestObjectRoundTrip_NestedKey(t *testing.T) {
	env := newTestEnv(t)
	env.s3.AddBucket("demo")
	content := strings.Repeat("x", 600)

	put := env.do(http.MethodPost, "/s3/buckets/demo/objects/logs/2026/app.log", content)
	require.Equal(t, http.StatusOK, put.Code)

	get := env.do(http.MethodGet, "/api/s3/buckets/demo/objects/logs/2026/app.log", "")
	require.Equal(t, http.StatusOK, get.Code)
	body := decode(t, get)
	assert.Equal(t, "logs/2026/app.log", body["key"])
	assert.Equal(t, 600.0, body["size"])
	assert.Equal(t, true, body["truncated"])
	assert.Equal(t, strings.Repeat("x", 500)+"...", body["content"])

	list := decode(t, env.do(http.MethodGet, "/s3/buckets/demo/objects", ""))
	assert.Equal(t, 1.0, list["count"])

	del := env.do(http.MethodDelete, "/api/s3/buckets/demo/objects/logs/2026/app.log", "")
	require.Equal(t, http.StatusOK, del.Code)

	again := env.do(http.MethodDelete, "/api/s3/buckets/demo/objects/logs/2026/app.log", "")
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestObjectRoundTrip_KeysAreNotCleaned(t *testing.T) {
	env := newTestEnv(t)
	env.s3.AddBucket("demo")

	for _, key := range []string{"a//b.txt", "dir/../x.txt", "./y.txt"} {
		put := env.do(http.MethodPost, "/api/s3/buckets/demo/objects/"+key, "payload")
		require.Equal(t, http.StatusOK, put.Code, key)
		assert.Equal(t, key, decode(t, put)["key"])

		get := env.do(http.MethodGet, "/s3/buckets/demo/objects/"+key, "")
		require.Equal(t, http.StatusOK, get.Code, key)
		body := decode(t, get)
		assert.Equal(t, key, body["key"])
		assert.Equal(t, "payload", body["content"])
	}

	list := decode(t, env.do(http.MethodGet, "/s3/buckets/demo/objects", ""))
	assert.Equal(t, 3.0, list["count"])
}

func TestGetObject_Missing(t *testing.T) {
	env := newTestEnv(t)
	env.s3.AddBucket("demo")

	w := env.do(http.MethodGet, "/api/s3/buckets/demo/objects/nope.txt", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "OBJECT_NOT_FOUND", decode(t, w)["error_code"])
}

func TestBuckets(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(http.MethodPut, "/api/s3/buckets/demo", "")
	assert.Equal(t, http.StatusCreated, created.Code)
	assert.Equal(t, "created", decode(t, created)["status"])

	again := env.do(http.MethodPut, "/api/s3/buckets/demo", "")
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "exists", decode(t, again)["status"])

	list := decode(t, env.do(http.MethodGet, "/s3/buckets", ""))
	buckets := list["buckets"].([]any)
	require.Len(t, buckets, 1)
	assert.Equal(t, "demo", buckets[0].(map[string]any)["name"])

	env.do(http.MethodPost, "/s3/buckets/demo/objects/k", "v")
	notEmpty := env.do(http.MethodDelete, "/s3/buckets/demo", "")
	assert.Equal(t, http.StatusConflict, notEmpty.Code)

	listing := decode(t, env.do(http.MethodGet, "/s3/buckets/demo", ""))
	assert.Equal(t, "demo", listing["bucket"])
	assert.Len(t, listing["objects"], 1)
}

func TestDeleteBucket_Nonexistent(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodDelete, "/api/s3/buckets/nonexistent", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "NotFound", body["kind"])
	assert.Equal(t, "BUCKET_NOT_FOUND", body["error_code"])
}

func TestOperations(t *testing.T) {
	env := newTestEnv(t)

	empty := decode(t, env.do(http.MethodGet, "/s3-operations?since=2026-01-01T00:00:00Z", ""))
	ops := empty["operations"].([]any)
	require.Len(t, ops, 1)
	assert.Equal(t, "INFO", ops[0].(map[string]any)["operation"])

	env.s3.AddBucket("demo")
	env.do(http.MethodPost, "/s3/buckets/demo/objects/a", "1")
	env.do(http.MethodPost, "/s3/buckets/demo/objects/b", "22")

	listed := decode(t, env.do(http.MethodGet, "/api/s3-operations", ""))
	ops = listed["operations"].([]any)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, "LIST", op.(map[string]any)["operation"])
		assert.Equal(t, 200.0, op.(map[string]any)["status_code"])
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := env.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "SeaweedFS Cluster API", body["service"])
		assert.NotEmpty(t, body["timestamp"])
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)
	env.docker.On("Ping", mock.Anything).Return(types.Ping{}, nil)

	w := env.do(http.MethodGet, "/api/ready", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])
}

func TestUnknownPathAndMethod(t *testing.T) {
	env := newTestEnv(t)

	notFound := env.do(http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, notFound.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, notFound)["error_code"])
	assert.NotEmpty(t, notFound.Header().Get("X-Request-ID"))

	notAllowed := env.do(http.MethodPatch, "/containers/master1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, notAllowed.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decode(t, notAllowed)["error_code"])
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req.WithContext(context.Background()))

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}
