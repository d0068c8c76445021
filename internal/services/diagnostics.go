package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/miradorstack/mirador-yield/internal/knowledge"
	"github.com/miradorstack/mirador-yield/internal/metrics"
	"github.com/miradorstack/mirador-yield/internal/patterns"
	"github.com/miradorstack/mirador-yield/internal/rca"
	"github.com/miradorstack/mirador-yield/internal/session"
	"github.com/miradorstack/mirador-yield/internal/spc"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// Defaults are applied when a request omits an optional parameter.
type Defaults struct {
	ControlLimitSigma float64
	WindowSize        int
	StdDevThreshold   float64
	MaxWhyDepth       int
}

// DefaultDefaults mirrors the documented operation defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		ControlLimitSigma: spc.DefaultSigma,
		WindowSize:        spc.DefaultWindowSize,
		StdDevThreshold:   spc.DefaultStdDevThreshold,
		MaxWhyDepth:       rca.DefaultMaxDepth,
	}
}

// ErrorObject is the boundary form of a failed operation.
type ErrorObject struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewErrorObject classifies err.
func NewErrorObject(err error) ErrorObject {
	return ErrorObject{Error: utils.KindOf(err), Message: utils.Message(err)}
}

// DiagnosticsService is the single request/response boundary shared by the
// gRPC, HTTP and MCP transports.
type DiagnosticsService struct {
	logger    *slog.Logger
	sessions  *session.Manager
	knowledge *knowledge.Matcher
	miner     *patterns.Miner
	tracer    trace.Tracer
	defaults  Defaults
	latencies *utils.LatencyTracker
	ops       map[string]*Operation
}

// Option customises a DiagnosticsService.
type Option func(*DiagnosticsService)

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *DiagnosticsService) { s.tracer = tracer }
}

// WithDefaults overrides the optional-parameter defaults.
func WithDefaults(d Defaults) Option {
	return func(s *DiagnosticsService) { s.defaults = d }
}

// WithKnowledge sets the knowledge matcher; the built-in table is used otherwise.
func WithKnowledge(m *knowledge.Matcher) Option {
	return func(s *DiagnosticsService) { s.knowledge = m }
}

// NewDiagnosticsService constructs the service facade over sessions.
func NewDiagnosticsService(logger *slog.Logger, sessions *session.Manager, opts ...Option) *DiagnosticsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DiagnosticsService{
		logger:    logger,
		sessions:  sessions,
		defaults:  DefaultDefaults(),
		latencies: utils.NewLatencyTracker(1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(session.NewMemoryStore(0, 0, nil), logger)
	}
	if s.knowledge == nil {
		s.knowledge = knowledge.NewMatcher(nil, logger)
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	s.miner = patterns.NewMiner(logger)
	s.ops = s.registry()
	return s
}

// Operations lists the registered operations sorted by name.
func (s *DiagnosticsService) Operations() []*Operation {
	out := make([]*Operation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named operation.
func (s *DiagnosticsService) Lookup(name string) (*Operation, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// Invoke decodes args for the named operation and runs it. Errors carry one
// of the utils error kinds.
func (s *DiagnosticsService) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	op, ok := s.ops[name]
	if !ok {
		return nil, utils.NotFound("services.invoke", "unknown operation %q", name)
	}

	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("mirador.operation", name)))
	defer span.End()

	start := time.Now()
	result, err := op.invoke(ctx, s, args)
	duration := time.Since(start)

	if err != nil {
		kind := utils.KindOf(err)
		metrics.ObserveOperation(name, duration, metrics.OutcomeError, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		level := slog.LevelDebug
		if kind == utils.KindInternal {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "operation failed",
			slog.String("operation", name),
			slog.String("kind", kind),
			slog.Any("error", err))
		return nil, err
	}

	metrics.ObserveOperation(name, duration, metrics.OutcomeSuccess, "")
	s.latencies.Observe(duration)
	if total := s.latencies.Total(); total%500 == 0 {
		s.logger.Info("operation latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", s.latencies.Count()))
	}
	s.logger.Debug("operation completed", slog.String("operation", name), slog.Duration("duration", duration))
	return result, nil
}

// Ping checks the session backend.
func (s *DiagnosticsService) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// LatencyP95 returns the p95 latency of recent successful operations.
func (s *DiagnosticsService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// record appends a history entry when the request named a session.
func (s *DiagnosticsService) record(ctx context.Context, sessionID, operation, summary string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.With(ctx, sessionID, func(sess *session.Session) error {
		sess.Record(operation, summary, s.sessions.Now())
		return nil
	})
}
