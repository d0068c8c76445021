package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-yield/internal/services"
)

func newTestServer() *Server {
	return NewServer(services.NewDiagnosticsService(nil, nil), "test", nil)
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "yield_metrics", ToolName("yieldMetrics"))
	assert.Equal(t, "spc_limits", ToolName("spcLimits"))
	assert.Equal(t, "query_knowledge_base", ToolName("queryKnowledgeBase"))
	assert.Equal(t, "end_session", ToolName("endSession"))
}

func TestEveryOperationIsATool(t *testing.T) {
	s := newTestServer()
	for _, op := range s.svc.Operations() {
		got, ok := s.Operation(ToolName(op.Name))
		require.True(t, ok, op.Name)
		assert.Equal(t, op.Name, got)
	}
}

func TestToolHandlerSuccess(t *testing.T) {
	s := newTestServer()
	req := mcp.CallToolRequest{}
	req.Params.Name = "yield_metrics"
	req.Params.Arguments = map[string]any{"total_units": 50, "defective_units": 5}

	res, err := s.toolHandler(services.OpYieldMetrics)(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var body map[string]float64
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &body))
	assert.InDelta(t, 0.9, body["yield_rate"], 1e-12)
}

func TestToolHandlerReturnsErrorObject(t *testing.T) {
	s := newTestServer()
	req := mcp.CallToolRequest{}
	req.Params.Name = "spc_limits"
	req.Params.Arguments = map[string]any{"data_points": []float64{1}}

	res, err := s.toolHandler(services.OpSPCLimits)(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var obj services.ErrorObject
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &obj))
	assert.Equal(t, "InsufficientData", obj.Error)
}

func TestToolHandlerNilArguments(t *testing.T) {
	s := newTestServer()
	res, err := s.toolHandler(services.OpSuggestActions)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"suggested_actions": []}`, textOf(t, res))
}

func TestHandleMessageListsToolsAndPrompt(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	resp := s.MCPServer().HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var tools struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &tools))
	assert.Len(t, tools.Result.Tools, 14)

	resp = s.MCPServer().HandleMessage(ctx, json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"five_whys_rca","arguments":{"problem_statement":"Tombstoning","session_id":"s9"}}}`))
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Tombstoning")
	assert.Contains(t, string(data), "rca_advance")
	assert.Contains(t, string(data), "s9")
}

func TestHandlerHealthz(t *testing.T) {
	h := newTestServer().Handler("mcp")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPromptMintsSessionID(t *testing.T) {
	s := newTestServer()
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{"name":"five_whys_rca","arguments":{"problem_statement":"Voids in BGA joints"}}}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var prompt struct {
		Result struct {
			Messages []struct {
				Content struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &prompt))
	require.Len(t, prompt.Result.Messages, 1)
	text := prompt.Result.Messages[0].Content.Text
	assert.Regexp(t, `Pass session_id "[0-9a-f-]{36}" on every call\.`, text)
}
