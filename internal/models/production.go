package models

// YieldMetrics is the outcome of a total/defective unit count.
type YieldMetrics struct {
	YieldRate  float64 `json:"yield_rate"`
	DefectRate float64 `json:"defect_rate"`
}

// StageRecord captures throughput for one production stage.
type StageRecord struct {
	Name   string `json:"stage_name"`
	Input  int    `json:"input_units"`
	Output int    `json:"output_units"`
}

// LowYieldStage is a stage whose output/input ratio fell below the threshold.
type LowYieldStage struct {
	Name   string  `json:"stage_name"`
	Yield  float64 `json:"yield"`
	Input  int     `json:"input_units"`
	Output int     `json:"output_units"`
}
