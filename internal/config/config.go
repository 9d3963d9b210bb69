// Package config provides configuration management for the cluster API.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the cluster API.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Docker      DockerConfig      `mapstructure:"docker"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	Cluster     ClusterConfig     `mapstructure:"cluster"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ServiceName     string        `mapstructure:"service_name"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DockerConfig holds container engine client configuration.
type DockerConfig struct {
	// Host overrides DOCKER_HOST when set, e.g. unix:///var/run/docker.sock.
	Host            string        `mapstructure:"host"`
	APIVersion      string        `mapstructure:"api_version"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MutationTimeout time.Duration `mapstructure:"mutation_timeout"`
	StopGracePeriod time.Duration `mapstructure:"stop_grace_period"`
}

// ProbeConfig holds node health probe configuration.
type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ClusterConfig describes the known deployment.
type ClusterConfig struct {
	// Nodes maps logical short names to container names.
	Nodes map[string]string `mapstructure:"nodes"`
	// NodesFile is an optional YAML file merged over Nodes.
	NodesFile string `mapstructure:"nodes_file"`
	// Markers select cluster-role containers when listing.
	Markers           []string `mapstructure:"markers"`
	HealthConcurrency int      `mapstructure:"health_concurrency"`
}

// GatewayConfig holds S3 gateway client configuration.
type GatewayConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Region        string        `mapstructure:"region"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxObjectSize int64         `mapstructure:"max_object_size"`
	PreviewLength int           `mapstructure:"preview_length"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/seaweed-api/")
	}

	// Read environment variables
	v.SetEnvPrefix("SEAWEED_API")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The gateway credentials are usually shared with the rest of the stack.
	_ = v.BindEnv("gateway.access_key", "SEAWEED_API_GATEWAY_ACCESS_KEY", "S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("gateway.secret_key", "SEAWEED_API_GATEWAY_SECRET_KEY", "S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("gateway.endpoint", "SEAWEED_API_GATEWAY_ENDPOINT", "S3_ENDPOINT")
	_ = v.BindEnv("logging.level", "SEAWEED_API_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "SEAWEED_API_LOGGING_FORMAT", "LOG_FORMAT")

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultNodes is the node table of the reference docker-compose deployment.
func DefaultNodes() map[string]string {
	nodes := make(map[string]string)
	for _, short := range []string{
		"master1", "master2", "master3",
		"volume1", "volume2", "volume3",
		"filer1", "filer2",
		"s3-1", "s3-2",
	} {
		nodes[short] = "seaweedfs-" + short
	}
	return nodes
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.service_name", "SeaweedFS Cluster API")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "50s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Docker defaults
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.api_version", "")
	v.SetDefault("docker.timeout", "5s")
	v.SetDefault("docker.mutation_timeout", "45s")
	v.SetDefault("docker.stop_grace_period", "30s")

	// Probe defaults
	v.SetDefault("probe.timeout", "5s")

	// Cluster defaults
	v.SetDefault("cluster.nodes", DefaultNodes())
	v.SetDefault("cluster.nodes_file", "")
	v.SetDefault("cluster.markers", []string{"master", "volume", "filer", "s3"})
	v.SetDefault("cluster.health_concurrency", 4)

	// Gateway defaults
	v.SetDefault("gateway.endpoint", "http://s3:8333")
	v.SetDefault("gateway.region", "us-east-1")
	v.SetDefault("gateway.access_key", "")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.max_object_size", 16*1024*1024)
	v.SetDefault("gateway.preview_length", 500)

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", false)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.Docker.Timeout <= 0 || c.Docker.MutationTimeout <= 0 {
		return fmt.Errorf("docker timeouts must be positive")
	}

	if c.Docker.StopGracePeriod < 0 {
		return fmt.Errorf("docker stop grace period must not be negative")
	}

	if c.Docker.StopGracePeriod >= c.Docker.MutationTimeout {
		return fmt.Errorf("docker stop grace period (%s) must be shorter than the mutation timeout (%s)",
			c.Docker.StopGracePeriod, c.Docker.MutationTimeout)
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	if c.Cluster.HealthConcurrency <= 0 {
		return fmt.Errorf("cluster health concurrency must be positive")
	}

	if c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway endpoint is required")
	}

	if c.Gateway.AccessKey == "" || c.Gateway.SecretKey == "" {
		return fmt.Errorf("gateway access key and secret key are required")
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}

	if c.Gateway.MaxObjectSize <= 0 {
		return fmt.Errorf("gateway max object size must be positive")
	}

	if c.Gateway.PreviewLength <= 0 {
		return fmt.Errorf("gateway preview length must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics port must differ from server port")
		}
	}

	return nil
}
