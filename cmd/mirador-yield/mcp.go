package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-yield/internal/mcp"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

var (
	mcpTransport string
	mcpAddress   string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the diagnostics operations as MCP tools",
	Long: `Start a Model Context Protocol server exposing every operation as a tool
plus a five_whys_rca prompt.

Transports:
  - stdio: for subprocess-based MCP clients (default)
  - http:  streamable HTTP, with a /healthz endpoint`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "", "Transport type: stdio or http (overrides config)")
	mcpCmd.Flags().StringVar(&mcpAddress, "http-addr", "", "HTTP listen address (overrides config)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mcpTransport != "" {
		cfg.MCP.Transport = mcpTransport
	}
	if mcpAddress != "" {
		cfg.MCP.Address = mcpAddress
	}

	// stdout carries protocol frames under stdio.
	logger := utils.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-yield mcp", slog.String("version", Version), slog.String("transport", cfg.MCP.Transport))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialise", slog.Any("error", err))
		return err
	}
	defer a.close(context.Background())

	server := mcp.NewServer(a.svc, Version, logger)
	if err := server.Serve(ctx, cfg.MCP, os.Stdin, os.Stdout); err != nil {
		logger.Error("mcp server exited", slog.Any("error", err))
		return err
	}
	logger.Info("mcp server stopped")
	return nil
}
