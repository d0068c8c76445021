package spc

import (
	"math"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// DefaultSigma is the conventional Shewhart control-limit width.
const DefaultSigma = 3.0

// Limits computes the centre line and control limits of series. The standard
// deviation is the sample deviation (n-1 divisor).
func Limits(series models.DataSeries, sigma float64) (models.ControlLimits, error) {
	const op = "spc.limits"
	if len(series) < 2 {
		return models.ControlLimits{}, utils.InsufficientData(op, "need at least 2 data points, got %d", len(series))
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return models.ControlLimits{}, utils.InvalidInput(op, "control limit sigma must be a positive number (got %v)", sigma)
	}
	if err := checkFinite(op, series); err != nil {
		return models.ControlLimits{}, err
	}

	m := mean(series)
	sd := sampleStdDev(series, m)
	return models.ControlLimits{
		Mean:   m,
		StdDev: sd,
		Sigma:  sigma,
		UCL:    m + sigma*sd,
		LCL:    m - sigma*sd,
		N:      len(series),
	}, nil
}

// OutOfControlPoints returns samples strictly above ucl or strictly below lcl.
func OutOfControlPoints(series models.DataSeries, ucl, lcl float64) ([]models.OutOfControlPoint, error) {
	const op = "spc.out_of_control_points"
	if math.IsNaN(ucl) || math.IsNaN(lcl) {
		return nil, utils.InvalidInput(op, "control limits must be numbers")
	}
	if ucl < lcl {
		return nil, utils.InvalidInput(op, "upper control limit %v is below lower control limit %v", ucl, lcl)
	}
	if err := checkFinite(op, series); err != nil {
		return nil, err
	}

	points := make([]models.OutOfControlPoint, 0)
	for i, v := range series {
		if v > ucl || v < lcl {
			points = append(points, models.OutOfControlPoint{Index: i, Value: v})
		}
	}
	return points, nil
}

func checkFinite(op string, series models.DataSeries) error {
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.InvalidInput(op, "data point %d is not a finite number", i)
		}
	}
	return nil
}

func mean(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
