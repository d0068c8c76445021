package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-yield/internal/actions"
	"github.com/miradorstack/mirador-yield/internal/engine"
	"github.com/miradorstack/mirador-yield/internal/metrics"
	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/rca"
	"github.com/miradorstack/mirador-yield/internal/session"
	"github.com/miradorstack/mirador-yield/internal/spc"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// Operation names.
const (
	OpYieldMetrics           = "yieldMetrics"
	OpLowYieldStages         = "lowYieldStages"
	OpSPCLimits              = "spcLimits"
	OpOutOfControlPoints     = "outOfControlPoints"
	OpRollingAnomalies       = "rollingAnomalies"
	OpMinePatterns           = "minePatterns"
	OpRCAAdvance             = "rcaAdvance"
	OpQueryKnowledgeBase     = "queryKnowledgeBase"
	OpAddActionItem          = "addActionItem"
	OpListActionItems        = "listActionItems"
	OpUpdateActionItemStatus = "updateActionItemStatus"
	OpSuggestActions         = "suggestActions"
	OpSessionHistory         = "sessionHistory"
	OpEndSession             = "endSession"
)

func (s *DiagnosticsService) registry() map[string]*Operation {
	ops := []*Operation{
		define(OpYieldMetrics, "Calculate yield rate and defect rate from total and defective unit counts.",
			yieldMetricsSchema, false, (*DiagnosticsService).yieldMetrics),
		define(OpLowYieldStages, "Find production stages whose output/input yield is strictly below a threshold.",
			lowYieldStagesSchema, false, (*DiagnosticsService).lowYieldStages),
		define(OpSPCLimits, "Compute mean, sample standard deviation and sigma control limits for a data series.",
			spcLimitsSchema, false, (*DiagnosticsService).spcLimits),
		define(OpOutOfControlPoints, "List samples strictly above the upper or below the lower control limit.",
			outOfControlPointsSchema, false, (*DiagnosticsService).outOfControlPoints),
		define(OpRollingAnomalies, "Flag samples outside a trailing-window mean +/- k*std band or absolute thresholds.",
			rollingAnomaliesSchema, false, (*DiagnosticsService).rollingAnomalies),
		define(OpMinePatterns, "Count failures per item and type, and average hours from the last maintenance to each failure.",
			minePatternsSchema, false, (*DiagnosticsService).minePatterns),
		define(OpRCAAdvance, "Drive a 5-Whys root cause analysis: returns the next why question or a conclusion.",
			rcaAdvanceSchema, true, (*DiagnosticsService).rcaAdvance),
		define(OpQueryKnowledgeBase, "Look up known problems, causes and solutions by keyword.",
			queryKnowledgeBaseSchema, false, (*DiagnosticsService).queryKnowledgeBase),
		define(OpAddActionItem, "Add a corrective action item to the session.",
			addActionItemSchema, true, (*DiagnosticsService).addActionItem),
		define(OpListActionItems, "List the session's action items, optionally filtered by status or owner.",
			listActionItemsSchema, true, (*DiagnosticsService).listActionItems),
		define(OpUpdateActionItemStatus, "Change the status of an action item.",
			updateActionItemStatusSchema, true, (*DiagnosticsService).updateActionItemStatus),
		define(OpSuggestActions, "Suggest improvement actions from RCA findings, low-yield stages, defect types and SPC points.",
			suggestActionsSchema, false, (*DiagnosticsService).suggestActions),
		define(OpSessionHistory, "Show the analyses run in a session, its RCA progress and action item count.",
			sessionOnlySchema, true, (*DiagnosticsService).sessionHistory),
		define(OpEndSession, "Discard all state held for a session.",
			sessionOnlySchema, true, (*DiagnosticsService).endSession),
	}

	registry := make(map[string]*Operation, len(ops))
	for _, op := range ops {
		registry[op.Name] = op
	}
	return registry
}

func (s *DiagnosticsService) yieldMetrics(ctx context.Context, req *yieldMetricsRequest) (any, error) {
	res, err := spc.YieldMetrics(*req.TotalUnits, *req.DefectiveUnits)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("yield %.2f%% over %d units (%d defective)", res.YieldRate*100, *req.TotalUnits, *req.DefectiveUnits)
	if err := s.record(ctx, req.SessionID, OpYieldMetrics, summary); err != nil {
		return nil, err
	}
	return res, nil
}

type lowYieldStagesResult struct {
	LowYieldStages []models.LowYieldStage `json:"low_yield_stages"`
	YieldThreshold float64                `json:"yield_threshold"`
}

func (s *DiagnosticsService) lowYieldStages(ctx context.Context, req *lowYieldStagesRequest) (any, error) {
	low, err := spc.LowYieldStages(req.Stages, *req.YieldThreshold)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(low))
	for _, stage := range low {
		names = append(names, stage.Name)
	}
	summary := fmt.Sprintf("%d of %d stages below %.2f", len(low), len(req.Stages), *req.YieldThreshold)
	if len(names) > 0 {
		summary += ": " + strings.Join(names, ", ")
	}
	if err := s.record(ctx, req.SessionID, OpLowYieldStages, summary); err != nil {
		return nil, err
	}
	return lowYieldStagesResult{LowYieldStages: low, YieldThreshold: *req.YieldThreshold}, nil
}

func (s *DiagnosticsService) spcLimits(ctx context.Context, req *spcLimitsRequest) (any, error) {
	sigma := s.defaults.ControlLimitSigma
	if req.ControlLimitSigma != nil {
		sigma = *req.ControlLimitSigma
	}
	limits, err := spc.Limits(req.DataPoints, sigma)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("n=%d mean=%.4g std=%.4g UCL=%.4g LCL=%.4g (%.1f sigma)",
		limits.N, limits.Mean, limits.StdDev, limits.UCL, limits.LCL, limits.Sigma)
	if err := s.record(ctx, req.SessionID, OpSPCLimits, summary); err != nil {
		return nil, err
	}
	return limits, nil
}

type outOfControlPointsResult struct {
	OutOfControlPoints []models.OutOfControlPoint `json:"out_of_control_points"`
}

func (s *DiagnosticsService) outOfControlPoints(ctx context.Context, req *outOfControlPointsRequest) (any, error) {
	points, err := spc.OutOfControlPoints(req.DataPoints, *req.UpperControlLimit, *req.LowerControlLimit)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("%d of %d points outside [%.4g, %.4g]", len(points), len(req.DataPoints), *req.LowerControlLimit, *req.UpperControlLimit)
	if err := s.record(ctx, req.SessionID, OpOutOfControlPoints, summary); err != nil {
		return nil, err
	}
	return outOfControlPointsResult{OutOfControlPoints: points}, nil
}

type rollingAnomaliesResult struct {
	Anomalies      []models.AnomalyRecord `json:"anomalies"`
	ParametersUsed models.AnomalyOptions  `json:"parameters_used"`
}

func (s *DiagnosticsService) rollingAnomalies(ctx context.Context, req *rollingAnomaliesRequest) (any, error) {
	opts := models.AnomalyOptions{
		WindowSize:      s.defaults.WindowSize,
		StdDevThreshold: s.defaults.StdDevThreshold,
		AbsoluteUpper:   req.AbsoluteUpperThreshold,
		AbsoluteLower:   req.AbsoluteLowerThreshold,
	}
	if req.WindowSize != nil {
		opts.WindowSize = *req.WindowSize
	}
	if req.StdDevThreshold != nil {
		opts.StdDevThreshold = *req.StdDevThreshold
	}

	anomalies, err := spc.RollingAnomalies(req.DataPoints, opts)
	if err != nil {
		return nil, err
	}
	metrics.AddAnomalies(len(anomalies))

	summary := fmt.Sprintf("%d anomalies in %d points (%s)", len(anomalies), len(req.DataPoints), opts)
	if err := s.record(ctx, req.SessionID, OpRollingAnomalies, summary); err != nil {
		return nil, err
	}
	return rollingAnomaliesResult{Anomalies: anomalies, ParametersUsed: opts}, nil
}

type minePatternsResult struct {
	IdentifiedPatterns   []models.PatternBucket `json:"identified_patterns"`
	MaintenanceEventType string                 `json:"maintenance_event_type"`
}

func (s *DiagnosticsService) minePatterns(ctx context.Context, req *minePatternsRequest) (any, error) {
	maintenance := strings.TrimSpace(req.MaintenanceType)
	if maintenance == "" {
		maintenance = models.DefaultMaintenanceEventType
	}
	summary, err := s.miner.Mine(req.events(), maintenance)
	if err != nil {
		return nil, err
	}
	buckets := summary.Buckets()

	line := fmt.Sprintf("%d failure buckets from %d events", len(buckets), len(req.EventData))
	if err := s.record(ctx, req.SessionID, OpMinePatterns, line); err != nil {
		return nil, err
	}
	return minePatternsResult{IdentifiedPatterns: buckets, MaintenanceEventType: maintenance}, nil
}

func (s *DiagnosticsService) rcaAdvance(ctx context.Context, req *rcaAdvanceRequest) (any, error) {
	if req.PreviousWhys != nil || req.SessionID == "" {
		return s.replayRCA(ctx, req)
	}

	var progress models.RCAProgress
	err := s.sessions.With(ctx, req.SessionID, func(sess *session.Session) error {
		problem := strings.TrimSpace(req.ProblemStatement)
		if sess.RCA == nil || req.Restart || sess.RCA.Problem() != problem {
			analysis, err := rca.New(problem, s.defaults.MaxWhyDepth)
			if err != nil {
				return err
			}
			sess.RCA = analysis
		}
		var err error
		progress, err = stepRCA(sess.RCA, req)
		if err != nil {
			return err
		}
		sess.Record(OpRCAAdvance, rcaLine(progress), s.sessions.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// replayRCA serves callers that keep the transcript themselves. When a session
// is named the rebuilt analysis replaces the one stored there.
func (s *DiagnosticsService) replayRCA(ctx context.Context, req *rcaAdvanceRequest) (any, error) {
	analysis, err := rca.Replay(req.ProblemStatement, req.steps(), s.defaults.MaxWhyDepth)
	if err != nil {
		return nil, err
	}
	progress, err := stepRCA(analysis, req)
	if err != nil {
		return nil, err
	}
	if req.SessionID != "" {
		err := s.sessions.With(ctx, req.SessionID, func(sess *session.Session) error {
			sess.RCA = analysis
			sess.Record(OpRCAAdvance, rcaLine(progress), s.sessions.Now())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return progress, nil
}

func stepRCA(analysis *rca.Session, req *rcaAdvanceRequest) (models.RCAProgress, error) {
	if req.Answer != nil {
		if _, err := analysis.Advance(*req.Answer); err != nil {
			return models.RCAProgress{}, err
		}
	}
	if req.Conclude {
		return analysis.Conclude(), nil
	}
	return analysis.Progress(), nil
}

func rcaLine(p models.RCAProgress) string {
	return fmt.Sprintf("5-whys depth %d, %s", p.Depth, p.State)
}

type queryKnowledgeBaseResult struct {
	Results []models.KBMatch `json:"results"`
}

func (s *DiagnosticsService) queryKnowledgeBase(_ context.Context, req *queryKnowledgeBaseRequest) (any, error) {
	return queryKnowledgeBaseResult{Results: s.knowledge.Query(req.SearchKeywords)}, nil
}

type addActionItemResult struct {
	ActionItemAdded models.ActionItem `json:"action_item_added"`
}

func (s *DiagnosticsService) addActionItem(ctx context.Context, req *addActionItemRequest) (any, error) {
	var item models.ActionItem
	err := s.sessions.With(ctx, req.SessionID, func(sess *session.Session) error {
		var err error
		item, err = sess.Ledger.Add(req.Description, req.Owner, req.Status)
		if err != nil {
			return err
		}
		sess.Record(OpAddActionItem, fmt.Sprintf("added %s (%s)", item.ID, item.Status), s.sessions.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addActionItemResult{ActionItemAdded: item}, nil
}

type listActionItemsResult struct {
	ActionItems []models.ActionItem `json:"action_items"`
}

func (s *DiagnosticsService) listActionItems(ctx context.Context, req *listActionItemsRequest) (any, error) {
	var filter actions.Filter
	if req.StatusFilter != nil {
		status, err := models.ParseActionStatus(*req.StatusFilter)
		if err != nil {
			return nil, utils.InvalidInput(OpListActionItems, "%v", err)
		}
		filter.Status = &status
	}
	if req.OwnerFilter != nil {
		owner := strings.TrimSpace(*req.OwnerFilter)
		filter.Owner = &owner
	}

	items := []models.ActionItem{}
	err := s.sessions.View(ctx, req.SessionID, func(sess *session.Session) error {
		items = sess.Ledger.List(filter)
		return nil
	})
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}
	return listActionItemsResult{ActionItems: items}, nil
}

type updateActionItemStatusResult struct {
	Success           bool              `json:"success"`
	UpdatedActionItem models.ActionItem `json:"updated_action_item"`
}

func (s *DiagnosticsService) updateActionItemStatus(ctx context.Context, req *updateActionItemStatusRequest) (any, error) {
	var item models.ActionItem
	err := s.sessions.View(ctx, req.SessionID, func(sess *session.Session) error {
		var err error
		item, err = sess.Ledger.UpdateStatus(req.ActionID, req.NewStatus)
		if err != nil {
			return err
		}
		sess.Record(OpUpdateActionItemStatus, fmt.Sprintf("%s is now %s", item.ID, item.Status), s.sessions.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updateActionItemStatusResult{Success: true, UpdatedActionItem: item}, nil
}

type suggestActionsResult struct {
	SuggestedActions []string `json:"suggested_actions"`
}

func (s *DiagnosticsService) suggestActions(ctx context.Context, req *suggestActionsRequest) (any, error) {
	in := engine.SuggestionInput{
		LowYieldStages: req.LowYieldStages,
		DefectTypes:    req.CommonDefectTypes,
		OutOfControl:   req.OutOfControl,
	}
	if req.RCASummary != nil {
		in.RCASummary = *req.RCASummary
	} else if req.SessionID != "" {
		err := s.sessions.View(ctx, req.SessionID, func(sess *session.Session) error {
			if sess.RCA != nil {
				if steps := sess.RCA.Steps(); len(steps) > 0 {
					in.RCASummary = steps[len(steps)-1].Answer
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			return nil, err
		}
	}

	suggestions := engine.Synthesize(in)
	if err := s.record(ctx, req.SessionID, OpSuggestActions, fmt.Sprintf("%d suggestions", len(suggestions))); err != nil {
		return nil, err
	}
	return suggestActionsResult{SuggestedActions: suggestions}, nil
}

type sessionHistoryResult struct {
	SessionID       string                `json:"session_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	History         []models.HistoryEntry `json:"history"`
	ActionItemCount int                   `json:"action_item_count"`
	RCA             *models.RCAProgress   `json:"rca,omitempty"`
}

func (s *DiagnosticsService) sessionHistory(ctx context.Context, req *sessionRequest) (any, error) {
	var res sessionHistoryResult
	err := s.sessions.View(ctx, req.SessionID, func(sess *session.Session) error {
		res = sessionHistoryResult{
			SessionID:       sess.ID,
			CreatedAt:       sess.CreatedAt,
			UpdatedAt:       sess.UpdatedAt,
			History:         sess.History,
			ActionItemCount: sess.Ledger.Len(),
		}
		if sess.RCA != nil {
			progress := sess.RCA.Progress()
			res.RCA = &progress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type endSessionResult struct {
	Success bool `json:"success"`
}

func (s *DiagnosticsService) endSession(ctx context.Context, req *sessionRequest) (any, error) {
	if err := s.sessions.End(ctx, req.SessionID); err != nil {
		return nil, err
	}
	metrics.SessionEnded()
	return endSessionResult{Success: true}, nil
}
