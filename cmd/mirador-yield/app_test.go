package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-yield/internal/config"
	"github.com/miradorstack/mirador-yield/internal/services"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

func TestNewAppWiresMemoryBackend(t *testing.T) {
	t.Setenv("MIRADOR_YIELD_CONFIG", "")
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, cfg, utils.NewLogger("error", false), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close(context.Background())

	assert.Len(t, operationNames(a.svc), 14)

	res, err := a.svc.Invoke(ctx, services.OpQueryKnowledgeBase, json.RawMessage(`{"search_keywords": ["tombstoning"]}`))
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), "kb-tombstoning")
}

func TestNewAppUsesCustomKnowledgeAndDefaults(t *testing.T) {
	dir := t.TempDir()
	kbPath := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(kbPath, []byte(`entries:
  - id: kb-custom
    keywords: [paint runs]
    problem_summary: Paint runs on panels
    possible_causes: [viscosity]
    suggested_solutions: [check viscosity]
`), 0o600))

	t.Setenv("MIRADOR_YIELD_CONFIG", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Knowledge.Path = kbPath
	cfg.Analysis.MaxWhyDepth = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, cfg, utils.NewLogger("error", false), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close(context.Background())

	res, err := a.svc.Invoke(ctx, services.OpQueryKnowledgeBase, json.RawMessage(`{"search_keywords": ["paint runs"]}`))
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), "kb-custom")

	_, err = a.svc.Invoke(ctx, services.OpRCAAdvance, json.RawMessage(`{"session_id": "x", "problem_statement": "runs", "answer": "a"}`))
	require.NoError(t, err)
	res, err = a.svc.Invoke(ctx, services.OpRCAAdvance, json.RawMessage(`{"session_id": "x", "problem_statement": "runs", "answer": "b"}`))
	require.NoError(t, err)
	out, err = json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"concluded":true`)
}
