package models

import "fmt"

// DataSeries is an ordered run of samples; index order is time or batch order.
type DataSeries []float64

// ControlLimits describes the centre line and sigma band of a control chart.
type ControlLimits struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Sigma  float64 `json:"sigma"`
	UCL    float64 `json:"upper_control_limit"`
	LCL    float64 `json:"lower_control_limit"`
	N      int     `json:"n"`
}

// OutOfControlPoint is a sample beyond the control limits.
type OutOfControlPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// AnomalyRule identifies which check flagged a sample.
type AnomalyRule string

const (
	RuleRollingUpper  AnomalyRule = "rolling_upper"
	RuleRollingLower  AnomalyRule = "rolling_lower"
	RuleAbsoluteUpper AnomalyRule = "absolute_upper"
	RuleAbsoluteLower AnomalyRule = "absolute_lower"
)

// AnomalyRecord is a sample flagged by rolling-window or absolute checks.
// Lower and Upper hold the bounds in force when the rule fired; an absolute
// rule leaves the side it does not constrain nil.
type AnomalyRecord struct {
	Index  int         `json:"index"`
	Value  float64     `json:"value"`
	Rule   AnomalyRule `json:"rule"`
	Reason string      `json:"reason"`
	Lower  *float64    `json:"lower_bound,omitempty"`
	Upper  *float64    `json:"upper_bound,omitempty"`
}

// AnomalyOptions configures rolling-window anomaly detection. Nil absolute
// thresholds are not checked.
type AnomalyOptions struct {
	WindowSize      int      `json:"window_size"`
	StdDevThreshold float64  `json:"std_dev_threshold"`
	AbsoluteUpper   *float64 `json:"absolute_upper_threshold"`
	AbsoluteLower   *float64 `json:"absolute_lower_threshold"`
}

// String renders the options for log lines.
func (o AnomalyOptions) String() string {
	s := fmt.Sprintf("window=%d k=%.2f", o.WindowSize, o.StdDevThreshold)
	if o.AbsoluteUpper != nil {
		s += fmt.Sprintf(" abs_upper=%.4g", *o.AbsoluteUpper)
	}
	if o.AbsoluteLower != nil {
		s += fmt.Sprintf(" abs_lower=%.4g", *o.AbsoluteLower)
	}
	return s
}
