package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
)

type fakeStatus map[string]engine.RunState

func (f fakeStatus) Status(_ context.Context, fullName string) engine.RunState {
	if s, ok := f[fullName]; ok {
		return s
	}
	return engine.StateNotFound
}

type fakeDoer struct {
	status int
	err    error
	hits   []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.hits = append(f.hits, req.URL.String())
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func newTestProber(status StatusGetter, doer Doer) *Prober {
	return NewProber(status, doer, time.Second, metrics.NewMetrics(), zap.NewNop())
}

func identity(short, full string) node.Identity {
	return node.Identity{ShortName: short, FullName: full, Type: node.Classify(short)}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		nodeType node.Type
		url      string
		accepted []int
	}{
		{node.TypeMaster, "http://h:9333/cluster/status", []int{200}},
		{node.TypeVolume, "http://h:8080/status", []int{200}},
		{node.TypeFiler, "http://h:8888/", []int{200}},
		{node.TypeGateway, "http://h:8333", []int{200, 403}},
	}

	for _, tt := range tests {
		t.Run(tt.nodeType.String(), func(t *testing.T) {
			target, ok := Endpoint(tt.nodeType)
			require.True(t, ok)
			assert.Equal(t, tt.url, target.URL("h"))
			assert.Equal(t, tt.accepted, target.Accepted)
		})
	}

	_, ok := Endpoint(node.TypeUnknown)
	assert.False(t, ok)
}

func TestCheck_Healthy(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK}
	p := newTestProber(fakeStatus{"seaweedfs-master1": engine.StateRunning}, doer)

	report := p.Check(context.Background(), identity("master1", "seaweedfs-master1"))

	assert.Equal(t, VerdictHealthy, report.Verdict)
	assert.Equal(t, engine.StateRunning, report.State)
	assert.Equal(t, "master1", report.Container)
	assert.Equal(t, []string{"http://seaweedfs-master1:9333/cluster/status"}, doer.hits)
}

func TestCheck_GatewayAccepts403(t *testing.T) {
	doer := &fakeDoer{status: http.StatusForbidden}
	p := newTestProber(fakeStatus{"seaweedfs-s3-1": engine.StateRunning}, doer)

	report := p.Check(context.Background(), identity("s3-1", "seaweedfs-s3-1"))

	assert.Equal(t, VerdictHealthy, report.Verdict)
}

func TestCheck_RejectedStatus(t *testing.T) {
	doer := &fakeDoer{status: http.StatusForbidden}
	p := newTestProber(fakeStatus{"seaweedfs-volume1": engine.StateRunning}, doer)

	report := p.Check(context.Background(), identity("volume1", "seaweedfs-volume1"))

	assert.Equal(t, VerdictUnhealthy, report.Verdict)
}

func TestCheck_ProbeError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("dial tcp: connection refused")}
	p := newTestProber(fakeStatus{"seaweedfs-filer1": engine.StateRunning}, doer)

	report := p.Check(context.Background(), identity("filer1", "seaweedfs-filer1"))

	assert.Equal(t, VerdictUnhealthy, report.Verdict)
	assert.Len(t, doer.hits, 1)
}

func TestCheck_NotRunningIsNeverProbed(t *testing.T) {
	for _, state := range []engine.RunState{engine.StateStopped, engine.StateNotFound} {
		t.Run(string(state), func(t *testing.T) {
			// The endpoint would answer healthy if it were asked.
			doer := &fakeDoer{status: http.StatusOK}
			p := newTestProber(fakeStatus{"seaweedfs-master1": state}, doer)

			report := p.Check(context.Background(), identity("master1", "seaweedfs-master1"))

			assert.Equal(t, VerdictUnhealthy, report.Verdict)
			assert.Equal(t, state, report.State)
			assert.Empty(t, doer.hits)
		})
	}
}

func TestCheck_UnknownType(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK}

	t.Run("running", func(t *testing.T) {
		p := newTestProber(fakeStatus{"postgres": engine.StateRunning}, doer)
		report := p.Check(context.Background(), identity("postgres", "postgres"))
		assert.Equal(t, VerdictUnknown, report.Verdict)
	})

	t.Run("not found", func(t *testing.T) {
		p := newTestProber(fakeStatus{}, doer)
		report := p.Check(context.Background(), identity("unknownnode", "unknownnode"))
		assert.Equal(t, VerdictUnhealthy, report.Verdict)
		assert.Equal(t, engine.StateNotFound, report.State)
	})

	assert.Empty(t, doer.hits)
}

type blockingDoer struct{}

func (blockingDoer) Do(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func TestCheck_Timeout(t *testing.T) {
	p := NewProber(fakeStatus{"seaweedfs-master1": engine.StateRunning}, blockingDoer{}, 50*time.Millisecond, nil, zap.NewNop())

	start := time.Now()
	report := p.Check(context.Background(), identity("master1", "seaweedfs-master1"))

	assert.Equal(t, VerdictUnhealthy, report.Verdict)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTarget_Accepts(t *testing.T) {
	target := Target{Accepted: []int{http.StatusOK, http.StatusForbidden}}

	assert.True(t, target.accepts(http.StatusOK))
	assert.True(t, target.accepts(http.StatusForbidden))
	assert.False(t, target.accepts(http.StatusServiceUnavailable))
	assert.False(t, Target{}.accepts(http.StatusOK))
}
