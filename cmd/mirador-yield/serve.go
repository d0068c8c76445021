package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-yield/internal/api"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostics operations over gRPC and JSON/HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-yield",
		slog.String("version", Version),
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to initialise", slog.Any("error", err))
		return err
	}
	defer a.close(context.Background())

	grpcServer, err := api.NewServer(cfg.Server, a.svc, operationNames(a.svc))
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		return err
	}

	var gateway *api.Gateway
	if cfg.Server.HTTPAddress != "" {
		gateway, err = api.NewGateway(cfg.Server, a.svc, prometheus.DefaultGatherer, logger)
		if err != nil {
			logger.Error("failed to create HTTP gateway", slog.Any("error", err))
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
		return grpcServer.Start()
	})
	if gateway != nil {
		g.Go(func() error {
			logger.Info("HTTP gateway listening", slog.String("address", gateway.Address()))
			return gateway.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grpcServer.GracefulTimeout())
		defer cancel()
		grpcServer.Shutdown(shutdownCtx)
		if gateway != nil {
			return gateway.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		return err
	}
	logger.Info("mirador-yield stopped")
	return nil
}
