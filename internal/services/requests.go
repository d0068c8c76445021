package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// validator is implemented by requests with required fields or cross-field rules.
type validator interface {
	validate(op string) error
}

// decodeRequest strictly decodes args into req: unknown fields, trailing data
// and type mismatches are InvalidInput.
func decodeRequest(op string, args json.RawMessage, req any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return utils.InvalidInput(op, "invalid arguments: %s", describeDecodeError(err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return utils.InvalidInput(op, "invalid arguments: trailing data after object")
	}
	if v, ok := req.(validator); ok {
		return v.validate(op)
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %q must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return strings.TrimPrefix(err.Error(), "json: ")
}

func missing(op, field string) error {
	return utils.InvalidInput(op, "%s is required", field)
}

type sessionScoped struct {
	SessionID string `json:"session_id,omitempty"`
}

type yieldMetricsRequest struct {
	TotalUnits     *int `json:"total_units"`
	DefectiveUnits *int `json:"defective_units"`
	sessionScoped
}

func (r *yieldMetricsRequest) validate(op string) error {
	switch {
	case r.TotalUnits == nil:
		return missing(op, "total_units")
	case r.DefectiveUnits == nil:
		return missing(op, "defective_units")
	}
	return nil
}

type lowYieldStagesRequest struct {
	Stages         []models.StageRecord `json:"production_data_per_stage"`
	YieldThreshold *float64             `json:"yield_threshold"`
	sessionScoped
}

func (r *lowYieldStagesRequest) validate(op string) error {
	switch {
	case r.Stages == nil:
		return missing(op, "production_data_per_stage")
	case r.YieldThreshold == nil:
		return missing(op, "yield_threshold")
	}
	return nil
}

type spcLimitsRequest struct {
	DataPoints        models.DataSeries `json:"data_points"`
	ControlLimitSigma *float64          `json:"control_limit_sigma"`
	sessionScoped
}

func (r *spcLimitsRequest) validate(op string) error {
	if r.DataPoints == nil {
		return missing(op, "data_points")
	}
	return nil
}

type outOfControlPointsRequest struct {
	DataPoints        models.DataSeries `json:"data_points"`
	UpperControlLimit *float64          `json:"upper_control_limit"`
	LowerControlLimit *float64          `json:"lower_control_limit"`
	sessionScoped
}

func (r *outOfControlPointsRequest) validate(op string) error {
	switch {
	case r.DataPoints == nil:
		return missing(op, "data_points")
	case r.UpperControlLimit == nil:
		return missing(op, "upper_control_limit")
	case r.LowerControlLimit == nil:
		return missing(op, "lower_control_limit")
	}
	return nil
}

type rollingAnomaliesRequest struct {
	DataPoints             models.DataSeries `json:"data_points"`
	WindowSize             *int              `json:"window_size"`
	StdDevThreshold        *float64          `json:"std_dev_threshold"`
	AbsoluteUpperThreshold *float64          `json:"absolute_upper_threshold"`
	AbsoluteLowerThreshold *float64          `json:"absolute_lower_threshold"`
	sessionScoped
}

func (r *rollingAnomaliesRequest) validate(op string) error {
	if r.DataPoints == nil {
		return missing(op, "data_points")
	}
	return nil
}

// eventTime accepts RFC3339 or spreadsheet-style strings, free-form dates, or
// Unix seconds as a JSON number.
type eventTime struct {
	time.Time
}

func (t *eventTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := utils.ParseTimestamp(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil || secs < 0 {
		return fmt.Errorf("timestamp must be a string or non-negative unix seconds, got %s", data)
	}
	whole := int64(secs)
	t.Time = time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
	return nil
}

type eventRecord struct {
	Timestamp *eventTime `json:"timestamp"`
	EventType string     `json:"event_type"`
	ItemID    string     `json:"item_id"`
}

type minePatternsRequest struct {
	EventData       []eventRecord `json:"event_data"`
	MaintenanceType string        `json:"maintenance_completed_event_type"`
	sessionScoped
}

func (r *minePatternsRequest) validate(op string) error {
	if r.EventData == nil {
		return missing(op, "event_data")
	}
	for i, ev := range r.EventData {
		if ev.Timestamp == nil {
			return utils.InvalidInput(op, "event_data[%d].timestamp is required", i)
		}
	}
	return nil
}

func (r *minePatternsRequest) events() []models.FailureEvent {
	events := make([]models.FailureEvent, 0, len(r.EventData))
	for _, ev := range r.EventData {
		events = append(events, models.FailureEvent{Timestamp: ev.Timestamp.Time, EventType: ev.EventType, ItemID: ev.ItemID})
	}
	return events
}

type whyRecord struct {
	Question string `json:"why_question"`
	Answer   string `json:"user_answer"`
}

type rcaAdvanceRequest struct {
	ProblemStatement string       `json:"problem_statement"`
	PreviousWhys     *[]whyRecord `json:"previous_whys"`
	Answer           *string      `json:"answer"`
	Conclude         bool         `json:"conclude"`
	Restart          bool         `json:"restart"`
	sessionScoped
}

func (r *rcaAdvanceRequest) validate(op string) error {
	if strings.TrimSpace(r.ProblemStatement) == "" {
		return missing(op, "problem_statement")
	}
	if r.PreviousWhys != nil && r.Restart {
		return utils.InvalidInput(op, "restart cannot be combined with previous_whys")
	}
	return nil
}

func (r *rcaAdvanceRequest) steps() []models.WhyStep {
	if r.PreviousWhys == nil {
		return nil
	}
	steps := make([]models.WhyStep, 0, len(*r.PreviousWhys))
	for _, w := range *r.PreviousWhys {
		steps = append(steps, models.WhyStep{Question: w.Question, Answer: w.Answer})
	}
	return steps
}

type queryKnowledgeBaseRequest struct {
	SearchKeywords []string `json:"search_keywords"`
}

func (r *queryKnowledgeBaseRequest) validate(op string) error {
	if r.SearchKeywords == nil {
		return missing(op, "search_keywords")
	}
	return nil
}

type addActionItemRequest struct {
	SessionID   string  `json:"session_id"`
	Description string  `json:"description"`
	Owner       *string `json:"owner"`
	Status      string  `json:"status"`
}

func (r *addActionItemRequest) validate(op string) error {
	if strings.TrimSpace(r.SessionID) == "" {
		return missing(op, "session_id")
	}
	if strings.TrimSpace(r.Description) == "" {
		return missing(op, "description")
	}
	return nil
}

type listActionItemsRequest struct {
	SessionID    string  `json:"session_id"`
	StatusFilter *string `json:"status_filter"`
	OwnerFilter  *string `json:"owner_filter"`
}

func (r *listActionItemsRequest) validate(op string) error {
	if strings.TrimSpace(r.SessionID) == "" {
		return missing(op, "session_id")
	}
	return nil
}

type updateActionItemStatusRequest struct {
	SessionID string `json:"session_id"`
	ActionID  string `json:"action_id"`
	NewStatus string `json:"new_status"`
}

func (r *updateActionItemStatusRequest) validate(op string) error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return missing(op, "session_id")
	case strings.TrimSpace(r.ActionID) == "":
		return missing(op, "action_id")
	case strings.TrimSpace(r.NewStatus) == "":
		return missing(op, "new_status")
	}
	return nil
}

type suggestActionsRequest struct {
	LowYieldStages    []models.LowYieldStage     `json:"low_yield_stages"`
	CommonDefectTypes []string                   `json:"common_defect_types"`
	OutOfControl      []models.OutOfControlPoint `json:"spc_out_of_control_points"`
	RCASummary        *string                    `json:"rca_summary"`
	sessionScoped
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (r *sessionRequest) validate(op string) error {
	if strings.TrimSpace(r.SessionID) == "" {
		return missing(op, "session_id")
	}
	return nil
}
