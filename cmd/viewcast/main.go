// Command viewcast serves the video idea board.
//
// At startup it loads the historical video dataset, fits the view model once
// and then serves:
//   - an HTML board of freshly generated, scored video ideas (GET /)
//   - a JSON API for batches, single predictions and the fitted model
//   - the gRPC service viewcast.v1.Board with standard health checks
//   - Prometheus metrics at /metrics
//
// A dataset that cannot be loaded or fitted is fatal: the process exits 1
// before any server starts.
//
// Usage:
//
//	viewcast \
//	  -dataset=data/videos.csv \
//	  -listen=:8080 -grpc-listen=:9090 \
//	  -locale=es -batch-size=20
//
// Environment variables:
//
//	LISTEN            - HTTP listen address (default: :8080)
//	GRPC_LISTEN       - gRPC listen address, empty disables (default: :9090)
//	DATASET_SOURCE    - csv, http, or redis (default: csv)
//	DATASET           - CSV dataset path (default: data/videos.csv)
//	DATASET_*         - source options, e.g. DATASET_URL, DATASET_ADDR, DATASET_KEY
//	POLICY_FILE       - YAML monetization policy
//	CPM_YOUTUBE       - YouTube revenue per 1000 views (default: 2.0)
//	CPM_TIKTOK        - TikTok revenue per 1000 views (default: 0.5)
//	THRESHOLD         - Minimum revenue to record (default: 5.0)
//	STRICT_CATEGORIES - Reject unknown type/platform names (default: false)
//	BATCH_SIZE        - Ideas per board batch (default: 20)
//	SEED              - Idea generator seed, 0 for time-based (default: 0)
//	LOCALE            - Board language: en or es (default: en)
//	LOG_LEVEL         - debug, info, warn, error (default: info)
//	LOG_FORMAT        - text or json (default: text)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/viewcast/cmd/viewcast/config"
	"github.com/HatiCode/viewcast/cmd/viewcast/logger"
	"github.com/HatiCode/viewcast/cmd/viewcast/metrics"
	"github.com/HatiCode/viewcast/cmd/viewcast/router"
	"github.com/HatiCode/viewcast/pkg/board"
	"github.com/HatiCode/viewcast/pkg/candidates"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
	"github.com/HatiCode/viewcast/pkg/httpx"
	"github.com/HatiCode/viewcast/pkg/rpc"
	"github.com/HatiCode/viewcast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting viewcast",
		"version", version,
		"dataset_source", cfg.DatasetSource,
		"strict_categories", cfg.StrictCategories,
		"locale", cfg.Locale,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	eng := engine.New(features.NewEncoder(cfg.StrictCategories), cfg.Policy, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fitFromSource(ctx, eng, cfg.DatasetSource, cfg.DatasetConfig, m, logger); err != nil {
		logger.Error("failed to fit view model", "error", err)
		os.Exit(1)
	}

	page, err := board.NewPage(cfg.Locale)
	if err != nil {
		logger.Error("failed to load board templates", "error", err)
		os.Exit(1)
	}
	b := board.New(eng, candidates.NewRandom(cfg.Seed), cfg.BatchSize, logger, m)

	tlsCfg, err := tls.ServerConfig(cfg.TLS)
	if err != nil {
		logger.Error("failed to load TLS configuration", "error", err)
		os.Exit(1)
	}

	handler := router.SetupRoutes(router.Deps{
		Engine:   eng,
		Board:    b,
		Page:     page,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)
	if tlsCfg != nil {
		httpServer.SetTLSConfig(tlsCfg)
	}

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- httpServer.Start()
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(rpc.LoggingInterceptor(logger))}
		if tlsCfg != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		}
		grpcServer = grpc.NewServer(opts...)
		rpc.Register(grpcServer, rpc.NewServer(eng, m, logger))

		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		servingStatus := healthpb.HealthCheckResponse_NOT_SERVING
		if eng.Ready() {
			servingStatus = healthpb.HealthCheckResponse_SERVING
		}
		healthServer.SetServingStatus("", servingStatus)
		healthServer.SetServingStatus(rpc.ServiceName, servingStatus)

		reflection.Register(grpcServer)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			logger.Error("failed to listen for gRPC", "addr", cfg.GRPCListen, "error", err)
			os.Exit(1)
		}

		go func() {
			logger.Info("grpc server listening", "addr", cfg.GRPCListen, "tls", tlsCfg != nil)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serverErr <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := httpServer.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
