package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

func invoke(t *testing.T, s *DiagnosticsService, op, args string) (any, error) {
	t.Helper()
	return s.Invoke(context.Background(), op, json.RawMessage(args))
}

func mustInvoke(t *testing.T, s *DiagnosticsService, op, args string) any {
	t.Helper()
	res, err := invoke(t, s, op, args)
	require.NoError(t, err, op)
	return res
}

func TestOperationsRegistered(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	names := make([]string, 0)
	for _, op := range s.Operations() {
		names = append(names, op.Name)
		assert.True(t, json.Valid(op.Schema), op.Name)
		assert.NotEmpty(t, op.Description, op.Name)
	}
	assert.Len(t, names, 14)
	assert.IsIncreasing(t, names)

	op, ok := s.Lookup(OpAddActionItem)
	require.True(t, ok)
	assert.True(t, op.Session)
}

func TestInvokeUnknownOperation(t *testing.T) {
	_, err := invoke(t, NewDiagnosticsService(nil, nil), "bogus", `{}`)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestInvokeRejectsUnknownFieldsAndBadTypes(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)

	_, err := invoke(t, s, OpYieldMetrics, `{"total_units": 10, "defective_units": 1, "extra": true}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = invoke(t, s, OpYieldMetrics, `{"total_units": "ten", "defective_units": 1}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = invoke(t, s, OpYieldMetrics, `{"total_units": 10}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = invoke(t, s, OpYieldMetrics, `{"total_units": 10, "defective_units": 1} {}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestYieldMetricsOperation(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpYieldMetrics, `{"total_units": 1000, "defective_units": 50}`)
	metrics := res.(models.YieldMetrics)
	assert.InDelta(t, 0.95, metrics.YieldRate, 1e-12)
	assert.InDelta(t, 0.05, metrics.DefectRate, 1e-12)

	_, err := invoke(t, s, OpYieldMetrics, `{"total_units": 0, "defective_units": 0}`)
	assert.ErrorIs(t, err, utils.ErrDivisionUndefined)
}

func TestLowYieldStagesOperation(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpLowYieldStages, `{
		"production_data_per_stage": [
			{"stage_name": "SMT", "input_units": 1000, "output_units": 980},
			{"stage_name": "AOI", "input_units": 980, "output_units": 900},
			{"stage_name": "Pack", "input_units": 900, "output_units": 899}
		],
		"yield_threshold": 0.95
	}`)
	out := res.(lowYieldStagesResult)
	require.Len(t, out.LowYieldStages, 1)
	assert.Equal(t, "AOI", out.LowYieldStages[0].Name)
	assert.InDelta(t, 900.0/980.0, out.LowYieldStages[0].Yield, 1e-12)
}

func TestSPCOperationsShareLimits(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	series := `[5.0, 6.2, 7.1, 8.0, 9.3, 10.4, 11.0, 9.8, 8.5, 8.2]`

	res := mustInvoke(t, s, OpSPCLimits, `{"data_points": `+series+`}`)
	limits := res.(models.ControlLimits)
	assert.InDelta(t, 3.0, limits.Sigma, 1e-12)
	assert.InDelta(t, limits.Mean+3*limits.StdDev, limits.UCL, 1e-9)

	res = mustInvoke(t, s, OpSPCLimits, `{"data_points": `+series+`, "control_limit_sigma": 1}`)
	narrow := res.(models.ControlLimits)
	assert.InDelta(t, narrow.Mean+narrow.StdDev, narrow.UCL, 1e-9)

	args, err := json.Marshal(map[string]any{
		"data_points":         json.RawMessage(series),
		"upper_control_limit": narrow.UCL,
		"lower_control_limit": narrow.LCL,
	})
	require.NoError(t, err)
	res = mustInvoke(t, s, OpOutOfControlPoints, string(args))
	points := res.(outOfControlPointsResult).OutOfControlPoints
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, p.Value > narrow.UCL || p.Value < narrow.LCL)
	}

	_, err = invoke(t, s, OpSPCLimits, `{"data_points": [1]}`)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)
}

func TestRollingAnomaliesOperationReportsParameters(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpRollingAnomalies, `{
		"data_points": [10, 10.5, 9.8, 10.2, 10.1, 10, 25, 10.3],
		"absolute_upper_threshold": 12
	}`)
	out := res.(rollingAnomaliesResult)
	assert.Equal(t, 5, out.ParametersUsed.WindowSize)
	assert.InDelta(t, 2.0, out.ParametersUsed.StdDevThreshold, 1e-12)
	require.NotNil(t, out.ParametersUsed.AbsoluteUpper)
	assert.Nil(t, out.ParametersUsed.AbsoluteLower)

	require.NotEmpty(t, out.Anomalies)
	assert.Equal(t, 6, out.Anomalies[0].Index)
}

func TestMinePatternsOperation(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpMinePatterns, `{
		"event_data": [
			{"timestamp": "2024-01-01T00:00:00Z", "event_type": "maintenance_completed", "item_id": "press-1"},
			{"timestamp": "2024-01-02T00:00:00Z", "event_type": "hydraulic_leak", "item_id": "press-1"},
			{"timestamp": 1704240000, "event_type": "hydraulic_leak", "item_id": "press-1"}
		]
	}`)
	out := res.(minePatternsResult)
	assert.Equal(t, models.DefaultMaintenanceEventType, out.MaintenanceEventType)
	require.Len(t, out.IdentifiedPatterns, 1)
	bucket := out.IdentifiedPatterns[0]
	assert.Equal(t, "press-1", bucket.ItemID)
	assert.Equal(t, 2, bucket.Count)
	require.NotNil(t, bucket.TimeToFailure)
	assert.InDelta(t, 36.0, bucket.TimeToFailure.AverageHours, 1e-9)

	_, err := invoke(t, s, OpMinePatterns, `{"event_data": [{"timestamp": -5, "event_type": "x", "item_id": "a"}]}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestRCASessionConcludesAtMaxDepth(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	start := mustInvoke(t, s, OpRCAAdvance, `{"session_id": "line-3", "problem_statement": "Solder bridging on board X"}`).(models.RCAProgress)
	assert.Equal(t, models.RCAAwaitingFirstWhy, start.State)
	assert.Equal(t, `Why did "Solder bridging on board X" occur?`, start.NextPrompt)

	answers := []string{"too much paste", "stencil worn", "no replacement schedule", "not tracked", "no owner"}
	var progress models.RCAProgress
	for i, answer := range answers {
		args, err := json.Marshal(map[string]any{
			"session_id":        "line-3",
			"problem_statement": "Solder bridging on board X",
			"answer":            answer,
		})
		require.NoError(t, err)
		progress = mustInvoke(t, s, OpRCAAdvance, string(args)).(models.RCAProgress)
		assert.Equal(t, i+1, progress.Depth)
	}
	assert.True(t, progress.Concluded)
	assert.NotEmpty(t, progress.ConclusionPrompt)
	assert.Len(t, progress.Summary, 6)

	_, err := invoke(t, s, OpRCAAdvance, `{"session_id": "line-3", "problem_statement": "Solder bridging on board X", "answer": "more"}`)
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	restarted := mustInvoke(t, s, OpRCAAdvance, `{"session_id": "line-3", "problem_statement": "Solder bridging on board X", "restart": true}`).(models.RCAProgress)
	assert.Equal(t, 0, restarted.Depth)
	assert.False(t, restarted.Concluded)
}

func TestRCAStatelessReplay(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpRCAAdvance, `{
		"problem_statement": "Voids in BGA joints",
		"previous_whys": [{"why_question": "Why voids?", "user_answer": "outgassing"}],
		"answer": "flux chemistry"
	}`)
	progress := res.(models.RCAProgress)
	assert.Equal(t, 2, progress.Depth)
	assert.Equal(t, `Why is "flux chemistry" happening?`, progress.NextPrompt)
	assert.Contains(t, progress.Summary, "1. Q: Why voids? A: outgassing")

	_, err := invoke(t, s, OpRCAAdvance, `{"problem_statement": "x", "previous_whys": [], "restart": true}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	concluded := mustInvoke(t, s, OpRCAAdvance, `{"problem_statement": "x", "answer": "y", "conclude": true}`).(models.RCAProgress)
	assert.True(t, concluded.Concluded)
	assert.Equal(t, 1, concluded.Depth)
}

func TestQueryKnowledgeBaseOperation(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	res := mustInvoke(t, s, OpQueryKnowledgeBase, `{"search_keywords": ["Solder Bridging", "reflow"]}`)
	results := res.(queryKnowledgeBaseResult).Results
	require.NotEmpty(t, results)
	assert.Equal(t, "kb-solder-bridging", results[0].ID)

	res = mustInvoke(t, s, OpQueryKnowledgeBase, `{"search_keywords": ["quantum"]}`)
	assert.Empty(t, res.(queryKnowledgeBaseResult).Results)
	assert.NotNil(t, res.(queryKnowledgeBaseResult).Results)
}

func TestActionItemLifecycle(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)

	added := mustInvoke(t, s, OpAddActionItem, `{"session_id": "s1", "description": "Replace stencil", "owner": "Dana"}`).(addActionItemResult).ActionItemAdded
	assert.Equal(t, models.StatusOpen, added.Status)
	mustInvoke(t, s, OpAddActionItem, `{"session_id": "s1", "description": "Audit paste", "status": "In Progress"}`)

	updated := mustInvoke(t, s, OpUpdateActionItemStatus, `{"session_id": "s1", "action_id": "`+added.ID+`", "new_status": "done"}`).(updateActionItemStatusResult)
	assert.True(t, updated.Success)
	assert.Equal(t, models.StatusDone, updated.UpdatedActionItem.Status)

	all := mustInvoke(t, s, OpListActionItems, `{"session_id": "s1"}`).(listActionItemsResult).ActionItems
	assert.Len(t, all, 2)

	closed := mustInvoke(t, s, OpListActionItems, `{"session_id": "s1", "status_filter": "DONE"}`).(listActionItemsResult).ActionItems
	require.Len(t, closed, 1)
	assert.Equal(t, added.ID, closed[0].ID)

	owned := mustInvoke(t, s, OpListActionItems, `{"session_id": "s1", "owner_filter": "Dana"}`).(listActionItemsResult).ActionItems
	require.Len(t, owned, 1)

	_, err := invoke(t, s, OpListActionItems, `{"session_id": "s1", "status_filter": "someday"}`)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = invoke(t, s, OpUpdateActionItemStatus, `{"session_id": "s1", "action_id": "act-missing", "new_status": "open"}`)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	empty := mustInvoke(t, s, OpListActionItems, `{"session_id": "nobody"}`).(listActionItemsResult).ActionItems
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestSuggestActionsUsesSessionRCA(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	mustInvoke(t, s, OpRCAAdvance, `{"session_id": "s2", "problem_statement": "Scratches", "answer": "worn conveyor belt"}`)

	res := mustInvoke(t, s, OpSuggestActions, `{"session_id": "s2", "common_defect_types": ["scratch"]}`)
	suggestions := res.(suggestActionsResult).SuggestedActions
	require.Len(t, suggestions, 2)
	assert.Contains(t, suggestions[0], "worn conveyor belt")
	assert.Contains(t, suggestions[1], "scratch")

	res = mustInvoke(t, s, OpSuggestActions, `{}`)
	assert.Empty(t, res.(suggestActionsResult).SuggestedActions)
	assert.NotNil(t, res.(suggestActionsResult).SuggestedActions)
}

func TestSessionHistoryAndEnd(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	mustInvoke(t, s, OpYieldMetrics, `{"session_id": "s3", "total_units": 10, "defective_units": 1}`)
	mustInvoke(t, s, OpAddActionItem, `{"session_id": "s3", "description": "Check feeder"}`)

	history := mustInvoke(t, s, OpSessionHistory, `{"session_id": "s3"}`).(sessionHistoryResult)
	assert.Equal(t, "s3", history.SessionID)
	assert.Equal(t, 1, history.ActionItemCount)
	require.Len(t, history.History, 2)
	assert.Equal(t, OpYieldMetrics, history.History[0].Operation)
	assert.Nil(t, history.RCA)

	mustInvoke(t, s, OpEndSession, `{"session_id": "s3"}`)
	_, err := invoke(t, s, OpSessionHistory, `{"session_id": "s3"}`)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	_, err = invoke(t, s, OpEndSession, `{"session_id": "s3"}`)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestNewErrorObject(t *testing.T) {
	obj := NewErrorObject(utils.InvalidInput("x", "bad thing"))
	assert.Equal(t, ErrorObject{Error: "InvalidInput", Message: "bad thing"}, obj)
}

func TestDefineBindsMethodHandler(t *testing.T) {
	s := NewDiagnosticsService(nil, nil)
	op := define(OpYieldMetrics, "yield", yieldMetricsSchema, false, (*DiagnosticsService).yieldMetrics)

	res, err := op.invoke(context.Background(), s, json.RawMessage(`{"total_units": 200, "defective_units": 10}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.95, res.(models.YieldMetrics).YieldRate, 1e-12)

	_, err = op.invoke(context.Background(), s, json.RawMessage(`{"total_units": 200}`))
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestNewErrorObjectNil(t *testing.T) {
	assert.Equal(t, ErrorObject{}, NewErrorObject(nil))
}
