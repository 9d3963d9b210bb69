// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/mock"
)

// MockDockerAPI is a mock implementation of the Docker Engine API subset used by the control client.
type MockDockerAPI struct {
	mock.Mock
}

// ContainerInspect mocks the inspect call.
func (m *MockDockerAPI) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(types.ContainerJSON), args.Error(1)
}

// ContainerStart mocks the start call.
func (m *MockDockerAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerStop mocks the stop call.
func (m *MockDockerAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerList mocks the list call.
func (m *MockDockerAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	args := m.Called(ctx, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Container), args.Error(1)
}

// Ping mocks the ping call.
func (m *MockDockerAPI) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Ping), args.Error(1)
}

// Close mocks closing the connection.
func (m *MockDockerAPI) Close() error {
	return nil
}

// InspectResult builds an inspect response for a container with the given run flag.
func InspectResult(name string, running bool) types.ContainerJSON {
	status := "exited"
	if running {
		status = "running"
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:   "0123456789abcdef0123456789abcdef",
			Name: "/" + name,
			State: &types.ContainerState{
				Status:  status,
				Running: running,
			},
		},
	}
}
