// Package main provides the entry point for the SeaweedFS cluster API service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/cluster"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/config"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/engine"
	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/handler"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/health"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/metrics"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/node"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/objectstore"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/probe"
	"github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := initLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger = initLogger(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("starting cluster API",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("gateway_endpoint", cfg.Gateway.Endpoint),
	)

	table := node.NewTable(cfg.Cluster.Nodes)
	if cfg.Cluster.NodesFile != "" {
		fileTable, err := node.LoadTableFile(cfg.Cluster.NodesFile)
		if err != nil {
			logger.Fatal("failed to load nodes file", zap.String("path", cfg.Cluster.NodesFile), zap.Error(err))
		}
		table = table.Merge(fileTable)
	}
	logger.Info("node table loaded", zap.Int("nodes", table.Len()))

	m := metrics.NewMetrics()

	dockerAPI, err := engine.NewDockerAPI(cfg.Docker)
	if err != nil {
		logger.Fatal("failed to create docker client", zap.Error(err))
	}
	engineClient := engine.NewClient(dockerAPI, cfg.Docker, m, logger)
	defer engineClient.Close()

	prober := probe.NewProber(engineClient, nil, cfg.Probe.Timeout, m, logger)
	gateway := objectstore.NewGateway(objectstore.NewS3Client(cfg.Gateway), cfg.Gateway, m, logger)

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

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
	}, readinessTimeout(cfg), m, logger)

	httpServer := server.NewServer(cfg, handlers, healthCheck, errorHandler, m, logger)
	httpServer.SetupRoutes()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()
	m.SetHealthStatus(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("initiating graceful shutdown")
	m.SetHealthStatus(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("cluster API shutdown complete")
}

// readinessTimeout covers the slower of the two dependency checks.
func readinessTimeout(cfg *config.Config) time.Duration {
	if cfg.Gateway.Timeout > cfg.Docker.Timeout {
		return cfg.Gateway.Timeout
	}
	return cfg.Docker.Timeout
}

// initLogger initializes the zap logger.
func initLogger(logLevel, logFormat string) *zap.Logger {
	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if logFormat == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
