package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used by the diagnostics service.
const TracerName = "github.com/miradorstack/mirador-yield"

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint, e.g. "otel-collector:4317"
	Insecure    bool
	ServiceName string
	Version     string
	SampleRatio float64
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewProvider installs an OTLP exporter when tracing is enabled. When
// disabled, Tracer returns a no-op tracer and nothing is exported.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return &Provider{tracer: noop.NewTracerProvider().Tracer(TracerName), logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "mirador-yield"
	}
	res, err := resource.New(dialCtx, resource.WithAttributes(
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing initialised", slog.String("endpoint", cfg.Endpoint), slog.Float64("sample_ratio", cfg.SampleRatio))

	return &Provider{tp: tp, tracer: tp.Tracer(TracerName), logger: logger, enabled: true}, nil
}

// Tracer returns the service tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		p.logger.Error("tracer provider shutdown failed", slog.Any("error", err))
		return err
	}
	return nil
}
