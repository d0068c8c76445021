package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-yield/internal/cache"
	"github.com/miradorstack/mirador-yield/internal/config"
	"github.com/miradorstack/mirador-yield/internal/knowledge"
	"github.com/miradorstack/mirador-yield/internal/metrics"
	"github.com/miradorstack/mirador-yield/internal/services"
	"github.com/miradorstack/mirador-yield/internal/session"
	"github.com/miradorstack/mirador-yield/internal/tracing"
)

// app holds the wired service and everything that must be released on exit.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *services.DiagnosticsService
	closers []func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tp.Shutdown)

	store, err := a.sessionStore(reg)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	base, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}
	matcher := knowledge.NewMatcher(base, logger)
	logger.Info("knowledge base loaded", slog.Int("entries", base.Len()), slog.String("path", cfg.Knowledge.Path))
	if cfg.Knowledge.Watch && cfg.Knowledge.Path != "" {
		if err := matcher.Watch(ctx, cfg.Knowledge.Path, cfg.Knowledge.Debounce, metrics.ObserveKnowledgeReload); err != nil {
			a.close(context.Background())
			return nil, err
		}
	}

	a.svc = services.NewDiagnosticsService(logger, session.NewManager(store, logger),
		services.WithTracer(tp.Tracer()),
		services.WithKnowledge(matcher),
		services.WithDefaults(services.Defaults{
			ControlLimitSigma: cfg.Analysis.ControlLimitSigma,
			WindowSize:        cfg.Analysis.WindowSize,
			StdDevThreshold:   cfg.Analysis.StdDevThreshold,
			MaxWhyDepth:       cfg.Analysis.MaxWhyDepth,
		}),
	)
	return a, nil
}

func (a *app) sessionStore(reg prometheus.Registerer) (session.Store, error) {
	cfg := a.cfg
	switch cfg.Session.Backend {
	case config.SessionBackendValkey:
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			PoolSize:     cfg.Cache.PoolSize,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("valkey session store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return provider.Close() })
		a.logger.Info("sessions stored in valkey", slog.String("addr", cfg.Cache.Addr))
		return session.NewCacheStore(provider, cfg.Session.KeyPrefix, cfg.Session.TTL), nil
	default:
		store := session.NewMemoryStore(cfg.Session.MaxSessions, cfg.Session.TTL, func(id string) {
			a.logger.Debug("session evicted", slog.String("session_id", id))
		})
		if err := metrics.RegisterActiveSessions(reg, func() float64 { return float64(store.Len()) }); err != nil {
			return nil, fmt.Errorf("register session gauge: %w", err)
		}
		return store, nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", slog.Any("error", err))
	}
}

func operationNames(svc *services.DiagnosticsService) []string {
	ops := svc.Operations()
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	return names
}
