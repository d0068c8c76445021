package services

const sessionIDProp = `"session_id": {"type": "string", "description": "Conversation session id; analysis results are added to its history."}`

const yieldMetricsSchema = `{
  "type": "object",
  "properties": {
    "total_units": {"type": "integer", "minimum": 0, "description": "Units produced."},
    "defective_units": {"type": "integer", "minimum": 0, "description": "Units found defective."},
    ` + sessionIDProp + `
  },
  "required": ["total_units", "defective_units"],
  "additionalProperties": false
}`

const lowYieldStagesSchema = `{
  "type": "object",
  "properties": {
    "production_data_per_stage": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "stage_name": {"type": "string"},
          "input_units": {"type": "integer", "exclusiveMinimum": 0},
          "output_units": {"type": "integer", "minimum": 0}
        },
        "required": ["stage_name", "input_units", "output_units"],
        "additionalProperties": false
      }
    },
    "yield_threshold": {"type": "number", "exclusiveMinimum": 0, "maximum": 1, "description": "Stages with yield strictly below this are reported, e.g. 0.95."},
    ` + sessionIDProp + `
  },
  "required": ["production_data_per_stage", "yield_threshold"],
  "additionalProperties": false
}`

const spcLimitsSchema = `{
  "type": "object",
  "properties": {
    "data_points": {"type": "array", "items": {"type": "number"}, "minItems": 2},
    "control_limit_sigma": {"type": "number", "exclusiveMinimum": 0, "default": 3.0},
    ` + sessionIDProp + `
  },
  "required": ["data_points"],
  "additionalProperties": false
}`

const outOfControlPointsSchema = `{
  "type": "object",
  "properties": {
    "data_points": {"type": "array", "items": {"type": "number"}},
    "upper_control_limit": {"type": "number"},
    "lower_control_limit": {"type": "number"},
    ` + sessionIDProp + `
  },
  "required": ["data_points", "upper_control_limit", "lower_control_limit"],
  "additionalProperties": false
}`

const rollingAnomaliesSchema = `{
  "type": "object",
  "properties": {
    "data_points": {"type": "array", "items": {"type": "number"}},
    "window_size": {"type": "integer", "minimum": 2, "default": 5},
    "std_dev_threshold": {"type": "number", "minimum": 0, "default": 2.0},
    "absolute_upper_threshold": {"type": "number"},
    "absolute_lower_threshold": {"type": "number"},
    ` + sessionIDProp + `
  },
  "required": ["data_points"],
  "additionalProperties": false
}`

const minePatternsSchema = `{
  "type": "object",
  "properties": {
    "event_data": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "timestamp": {"type": ["string", "number"], "description": "RFC3339, 'YYYY-MM-DD HH:MM:SS', a readable date, or Unix seconds."},
          "event_type": {"type": "string"},
          "item_id": {"type": "string"}
        },
        "required": ["timestamp", "event_type", "item_id"],
        "additionalProperties": false
      }
    },
    "maintenance_completed_event_type": {"type": "string", "default": "maintenance_completed"},
    ` + sessionIDProp + `
  },
  "required": ["event_data"],
  "additionalProperties": false
}`

const rcaAdvanceSchema = `{
  "type": "object",
  "properties": {
    "problem_statement": {"type": "string"},
    "previous_whys": {
      "type": "array",
      "description": "Transcript kept by the caller. When present the analysis is rebuilt from it instead of the session.",
      "items": {
        "type": "object",
        "properties": {
          "why_question": {"type": "string"},
          "user_answer": {"type": "string"}
        },
        "required": ["user_answer"],
        "additionalProperties": false
      }
    },
    "answer": {"type": "string", "description": "Answer to the current why question."},
    "conclude": {"type": "boolean", "description": "Stop the analysis at its current depth."},
    "restart": {"type": "boolean", "description": "Discard the session's analysis and start over."},
    "session_id": {"type": "string"}
  },
  "required": ["problem_statement"],
  "additionalProperties": false
}`

const queryKnowledgeBaseSchema = `{
  "type": "object",
  "properties": {
    "search_keywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["search_keywords"],
  "additionalProperties": false
}`

const addActionItemSchema = `{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"},
    "description": {"type": "string"},
    "owner": {"type": "string"},
    "status": {"type": "string", "enum": ["open", "in_progress", "done", "cancelled"], "default": "open"}
  },
  "required": ["session_id", "description"],
  "additionalProperties": false
}`

const listActionItemsSchema = `{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"},
    "status_filter": {"type": "string", "enum": ["open", "in_progress", "done", "cancelled"]},
    "owner_filter": {"type": "string"}
  },
  "required": ["session_id"],
  "additionalProperties": false
}`

const updateActionItemStatusSchema = `{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"},
    "action_id": {"type": "string"},
    "new_status": {"type": "string", "enum": ["open", "in_progress", "done", "cancelled"]}
  },
  "required": ["session_id", "action_id", "new_status"],
  "additionalProperties": false
}`

const suggestActionsSchema = `{
  "type": "object",
  "properties": {
    "low_yield_stages": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "stage_name": {"type": "string"},
          "yield": {"type": "number"},
          "input_units": {"type": "integer"},
          "output_units": {"type": "integer"}
        },
        "required": ["stage_name"],
        "additionalProperties": false
      }
    },
    "common_defect_types": {"type": "array", "items": {"type": "string"}},
    "spc_out_of_control_points": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"index": {"type": "integer"}, "value": {"type": "number"}},
        "required": ["index", "value"],
        "additionalProperties": false
      }
    },
    "rca_summary": {"type": "string", "description": "Key RCA finding. Defaults to the last answer of the session's analysis."},
    "session_id": {"type": "string"}
  },
  "additionalProperties": false
}`

const sessionOnlySchema = `{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"}
  },
  "required": ["session_id"],
  "additionalProperties": false
}`
