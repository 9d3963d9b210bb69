package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY", "admin")
	t.Setenv("S3_SECRET_KEY", "seaweedadmin")
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  50 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Docker: DockerConfig{
			Timeout:         5 * time.Second,
			MutationTimeout: 45 * time.Second,
			StopGracePeriod: 30 * time.Second,
		},
		Probe: ProbeConfig{Timeout: 5 * time.Second},
		Cluster: ClusterConfig{
			Nodes:             DefaultNodes(),
			Markers:           []string{"master", "volume", "filer", "s3"},
			HealthConcurrency: 4,
		},
		Gateway: GatewayConfig{
			Endpoint:      "http://s3:8333",
			Region:        "us-east-1",
			AccessKey:     "admin",
			SecretKey:     "seaweedadmin",
			Timeout:       10 * time.Second,
			MaxObjectSize: 1024,
			PreviewLength: 500,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

func TestConfigLoad_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "SeaweedFS Cluster API", cfg.Server.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 5*time.Second, cfg.Docker.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Docker.MutationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Docker.StopGracePeriod)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)

	assert.Equal(t, "seaweedfs-master1", cfg.Cluster.Nodes["master1"])
	assert.Equal(t, "seaweedfs-s3-2", cfg.Cluster.Nodes["s3-2"])
	assert.Equal(t, []string{"master", "volume", "filer", "s3"}, cfg.Cluster.Markers)

	assert.Equal(t, "http://s3:8333", cfg.Gateway.Endpoint)
	assert.Equal(t, "admin", cfg.Gateway.AccessKey)
	assert.Equal(t, "seaweedadmin", cfg.Gateway.SecretKey)
	assert.Equal(t, 500, cfg.Gateway.PreviewLength)

	assert.False(t, cfg.RateLimiter.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestConfigLoad_FromEnvironment(t *testing.T) {
	setCredentials(t)
	t.Setenv("SEAWEED_API_SERVER_PORT", "9000")
	t.Setenv("SEAWEED_API_PROBE_TIMEOUT", "2s")
	t.Setenv("S3_ENDPOINT", "http://filer1:8333")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "http://filer1:8333", cfg.Gateway.Endpoint)
}

func TestConfigLoad_FromFile(t *testing.T) {
	setCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 8181
cluster:
  nodes:
    master1: prod-master-a
  markers: [master]
gateway:
  preview_length: 64
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "prod-master-a", cfg.Cluster.Nodes["master1"])
	assert.Equal(t, []string{"master"}, cfg.Cluster.Markers)
	assert.Equal(t, 64, cfg.Gateway.PreviewLength)
}

func TestConfigLoad_MissingCredentials(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY", "")
	t.Setenv("S3_SECRET_KEY", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access key and secret key are required")
}

func TestConfigValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfigValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"server port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, "request timeout must be positive"},
		{"docker timeout", func(c *Config) { c.Docker.Timeout = 0 }, "docker timeouts must be positive"},
		{"grace period", func(c *Config) { c.Docker.StopGracePeriod = time.Minute }, "must be shorter than the mutation timeout"},
		{"probe timeout", func(c *Config) { c.Probe.Timeout = 0 }, "probe timeout must be positive"},
		{"concurrency", func(c *Config) { c.Cluster.HealthConcurrency = 0 }, "health concurrency must be positive"},
		{"endpoint", func(c *Config) { c.Gateway.Endpoint = "" }, "gateway endpoint is required"},
		{"secret", func(c *Config) { c.Gateway.SecretKey = "" }, "access key and secret key are required"},
		{"preview", func(c *Config) { c.Gateway.PreviewLength = 0 }, "preview length must be positive"},
		{"rate limiter", func(c *Config) {
			c.RateLimiter.Enabled = true
			c.RateLimiter.RequestsPerSecond = 0
		}, "rate limiter requests per second must be positive"},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "invalid metrics port"},
		{"metrics port clash", func(c *Config) { c.Metrics.Port = 8080 }, "metrics port must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
