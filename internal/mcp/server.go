package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/miradorstack/mirador-yield/internal/config"
	"github.com/miradorstack/mirador-yield/internal/services"
	"github.com/miradorstack/mirador-yield/internal/session"
)

// Transports accepted by Serve.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server exposes every diagnostics operation as an MCP tool.
type Server struct {
	logger    *slog.Logger
	svc       *services.DiagnosticsService
	mcpServer *server.MCPServer
	tools     map[string]string
}

// NewServer registers the tools and prompts.
func NewServer(svc *services.DiagnosticsService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger: logger,
		svc:    svc,
		mcpServer: server.NewMCPServer(
			"mirador-yield",
			version,
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
		),
		tools: make(map[string]string),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// ToolName converts an operation name such as queryKnowledgeBase into the
// snake_case tool name query_knowledge_base.
func ToolName(operation string) string {
	var b strings.Builder
	for i, r := range operation {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Server) registerTools() {
	for _, op := range s.svc.Operations() {
		name := ToolName(op.Name)
		s.tools[name] = op.Name
		tool := mcp.NewToolWithRawSchema(name, op.Description, op.Schema)
		s.mcpServer.AddTool(tool, s.toolHandler(op.Name))
	}
}

func (s *Server) toolHandler(operation string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.svc.Invoke(ctx, operation, args)
		if err != nil {
			body, _ := json.Marshal(services.NewErrorObject(err))
			return mcp.NewToolResultError(string(body)), nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func (s *Server) registerPrompts() {
	prompt := mcp.Prompt{
		Name:        "five_whys_rca",
		Description: "Walk an operator through a 5-Whys root cause analysis of a production problem",
		Arguments: []mcp.PromptArgument{
			{Name: "problem_statement", Description: "The observed problem, e.g. 'solder bridging on board X'", Required: true},
			{Name: "session_id", Description: "Session to keep the analysis and action items in; a new one is created when omitted", Required: false},
		},
	}

	s.mcpServer.AddPrompt(prompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		problem := strings.TrimSpace(request.Params.Arguments["problem_statement"])
		if problem == "" {
			return nil, fmt.Errorf("problem_statement is required")
		}
		sessionID := strings.TrimSpace(request.Params.Arguments["session_id"])
		if sessionID == "" {
			sessionID = session.NewID()
		}

		text := fmt.Sprintf("Run a 5-Whys root cause analysis of %q. Call %s with the problem statement to get the first question, "+
			"ask the operator, then call it again with each answer until it reports a conclusion. "+
			"Use %s with the answers as keywords to check known causes, then record corrective actions with %s.",
			problem, ToolName(services.OpRCAAdvance), ToolName(services.OpQueryKnowledgeBase), ToolName(services.OpAddActionItem))
		text += fmt.Sprintf(" Pass session_id %q on every call.", sessionID)

		return &mcp.GetPromptResult{
			Description: "5-Whys root cause analysis",
			Messages: []mcp.PromptMessage{
				{
					Role:    mcp.RoleUser,
					Content: mcp.TextContent{Type: "text", Text: text},
				},
			},
		}, nil
	})
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Operation resolves a tool name back to its operation.
func (s *Server) Operation(tool string) (string, bool) {
	op, ok := s.tools[tool]
	return op, ok
}

// ServeStdio speaks MCP over in and out until ctx is cancelled or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Handler returns the streamable HTTP handler with /healthz beside it.
func (s *Server) Handler(path string) http.Handler {
	if path == "" {
		path = "/mcp"
	} else if path[0] != '/' {
		path = "/" + path
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(path, server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	))
	return mux
}

// ServeHTTP listens on cfg.Address until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, cfg config.MCPConfig) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(cfg.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp http listening", slog.String("address", cfg.Address), slog.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Serve runs the transport named in cfg.
func (s *Server) Serve(ctx context.Context, cfg config.MCPConfig, in io.Reader, out io.Writer) error {
	switch strings.ToLower(cfg.Transport) {
	case TransportStdio, "":
		s.logger.Info("mcp stdio transport started")
		return s.ServeStdio(ctx, in, out)
	case TransportHTTP:
		return s.ServeHTTP(ctx, cfg)
	default:
		return fmt.Errorf("unknown mcp transport %q (want stdio or http)", cfg.Transport)
	}
}
