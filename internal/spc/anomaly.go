package spc

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

const (
	// DefaultWindowSize is the trailing history used for rolling bounds.
	DefaultWindowSize = 5
	// DefaultStdDevThreshold is the rolling band width in standard deviations.
	DefaultStdDevThreshold = 2.0
)

// DefaultAnomalyOptions returns the rolling-window defaults with no absolute bounds.
func DefaultAnomalyOptions() models.AnomalyOptions {
	return models.AnomalyOptions{WindowSize: DefaultWindowSize, StdDevThreshold: DefaultStdDevThreshold}
}

// RollingAnomalies flags samples that leave the mean +/- k*std band of the
// preceding WindowSize samples, or cross an absolute threshold. The current
// sample is never part of its own window, so indices below WindowSize are not
// checked. When several rules fire only the first, in the order rolling upper,
// rolling lower, absolute upper, absolute lower, is reported.
func RollingAnomalies(series models.DataSeries, opts models.AnomalyOptions) ([]models.AnomalyRecord, error) {
	const op = "spc.rolling_anomalies"
	if opts.WindowSize < 2 {
		return nil, utils.InvalidInput(op, "window size must be at least 2 (got %d)", opts.WindowSize)
	}
	if !(opts.StdDevThreshold >= 0) || math.IsInf(opts.StdDevThreshold, 0) {
		return nil, utils.InvalidInput(op, "std dev threshold must be a non-negative number (got %v)", opts.StdDevThreshold)
	}
	if opts.AbsoluteUpper != nil && opts.AbsoluteLower != nil && *opts.AbsoluteLower > *opts.AbsoluteUpper {
		return nil, utils.InvalidInput(op, "absolute lower threshold %v is above absolute upper threshold %v", *opts.AbsoluteLower, *opts.AbsoluteUpper)
	}
	if err := checkFinite(op, series); err != nil {
		return nil, err
	}

	anomalies := make([]models.AnomalyRecord, 0)
	window := newSlidingWindow(opts.WindowSize)
	for i, v := range series {
		if window.Full() {
			m, sd := window.Stats()
			if record, ok := check(i, v, m, sd, opts); ok {
				anomalies = append(anomalies, record)
			}
		}
		window.Add(v)
	}
	return anomalies, nil
}

func check(index int, value, m, sd float64, opts models.AnomalyOptions) (models.AnomalyRecord, bool) {
	k := opts.StdDevThreshold
	upper := m + k*sd
	lower := m - k*sd
	record := models.AnomalyRecord{Index: index, Value: value}

	switch {
	case value > upper:
		record.Rule = models.RuleRollingUpper
		record.Lower, record.Upper = &lower, &upper
		record.Reason = fmt.Sprintf("value %.4g exceeds rolling upper bound %.4g (mean %.4g + %.4g*std %.4g)", value, upper, m, k, sd)
	case value < lower:
		record.Rule = models.RuleRollingLower
		record.Lower, record.Upper = &lower, &upper
		record.Reason = fmt.Sprintf("value %.4g is below rolling lower bound %.4g (mean %.4g - %.4g*std %.4g)", value, lower, m, k, sd)
	case opts.AbsoluteUpper != nil && value > *opts.AbsoluteUpper:
		record.Rule = models.RuleAbsoluteUpper
		record.Lower, record.Upper = opts.AbsoluteLower, opts.AbsoluteUpper
		record.Reason = fmt.Sprintf("value %.4g exceeds absolute upper threshold %.4g", value, *opts.AbsoluteUpper)
	case opts.AbsoluteLower != nil && value < *opts.AbsoluteLower:
		record.Rule = models.RuleAbsoluteLower
		record.Lower, record.Upper = opts.AbsoluteLower, opts.AbsoluteUpper
		record.Reason = fmt.Sprintf("value %.4g is below absolute lower threshold %.4g", value, *opts.AbsoluteLower)
	default:
		return models.AnomalyRecord{}, false
	}
	return record, true
}
