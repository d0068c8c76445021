package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-yield/internal/config"
	"github.com/miradorstack/mirador-yield/internal/services"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

const maxBodyBytes = 4 << 20

// Gateway serves the operations as JSON over HTTP alongside health and
// Prometheus endpoints.
type Gateway struct {
	logger   *slog.Logger
	svc      *services.DiagnosticsService
	server   *http.Server
	listener net.Listener
}

type operationInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Session     bool            `json:"session"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type healthResponse struct {
	Status       string  `json:"status"`
	Operations   int     `json:"operations"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
	Error        string  `json:"error,omitempty"`
}

// NewGateway binds the HTTP listener. gatherer may be nil to use the default
// Prometheus registry.
func NewGateway(cfg config.ServerConfig, svc *services.DiagnosticsService, gatherer prometheus.Gatherer, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	lis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddress, err)
	}

	g := &Gateway{logger: logger, svc: svc, listener: lis}
	g.server = &http.Server{
		Handler:      g.Router(gatherer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return g, nil
}

// Router builds the route table.
func (g *Gateway) Router(gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.Use(g.logRequests)
	router.HandleFunc("/v1/operations", g.listOperations).Methods(http.MethodGet)
	router.HandleFunc("/v1/operations/{operation}", g.invoke).Methods(http.MethodPost)
	router.HandleFunc("/healthz", g.healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

func (g *Gateway) invoke(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["operation"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		g.respondError(w, utils.InvalidInput(name, "read body: %v", err))
		return
	}

	result, err := g.svc.Invoke(r.Context(), name, body)
	if err != nil {
		g.respondError(w, err)
		return
	}
	g.respondJSON(w, http.StatusOK, result)
}

func (g *Gateway) listOperations(w http.ResponseWriter, _ *http.Request) {
	ops := g.svc.Operations()
	out := make([]operationInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, operationInfo{
			Name:        op.Name,
			Description: op.Description,
			Session:     op.Session,
			InputSchema: op.Schema,
		})
	}
	g.respondJSON(w, http.StatusOK, map[string]any{"operations": out})
}

func (g *Gateway) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "ok",
		Operations:   len(g.svc.Operations()),
		LatencyP95Ms: float64(g.svc.LatencyP95()) / float64(time.Millisecond),
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := g.svc.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		g.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	g.respondJSON(w, http.StatusOK, resp)
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalidInput), errors.Is(err, utils.ErrDivisionUndefined):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, utils.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) respondError(w http.ResponseWriter, err error) {
	g.respondJSON(w, HTTPStatus(err), services.NewErrorObject(err))
}

func (g *Gateway) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Warn("write response", slog.Any("error", err))
	}
}

func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (g *Gateway) Start() error {
	if err := g.server.Serve(g.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

// Address returns the bound listener address.
func (g *Gateway) Address() string {
	return g.listener.Addr().String()
}
