package spc

import (
	"strings"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

// YieldMetrics derives yield and defect rates from unit counts.
func YieldMetrics(total, defective int) (models.YieldMetrics, error) {
	const op = "spc.yield_metrics"
	if total < 0 {
		return models.YieldMetrics{}, utils.InvalidInput(op, "total units cannot be negative (got %d)", total)
	}
	if defective < 0 {
		return models.YieldMetrics{}, utils.InvalidInput(op, "defective units cannot be negative (got %d)", defective)
	}
	if defective > total {
		return models.YieldMetrics{}, utils.InvalidInput(op, "defective units (%d) cannot exceed total units (%d)", defective, total)
	}
	if total == 0 {
		return models.YieldMetrics{}, utils.DivisionUndefined(op, "total units is zero")
	}

	return models.YieldMetrics{
		YieldRate:  float64(total-defective) / float64(total),
		DefectRate: float64(defective) / float64(total),
	}, nil
}

// LowYieldStages returns, in input order, the stages whose yield is strictly
// below threshold. The whole batch is rejected if any stage is malformed.
func LowYieldStages(stages []models.StageRecord, threshold float64) ([]models.LowYieldStage, error) {
	const op = "spc.low_yield_stages"
	if !(threshold > 0 && threshold <= 1) {
		return nil, utils.InvalidInput(op, "yield threshold must be in (0, 1] (got %v)", threshold)
	}

	low := make([]models.LowYieldStage, 0)
	for i, stage := range stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return nil, utils.InvalidInput(op, "stage %d has no name", i)
		}
		if stage.Input <= 0 {
			return nil, utils.InvalidInput(op, "input units for stage %s must be positive (got %d)", name, stage.Input)
		}
		if stage.Output < 0 {
			return nil, utils.InvalidInput(op, "output units for stage %s cannot be negative (got %d)", name, stage.Output)
		}
		if stage.Output > stage.Input {
			return nil, utils.InvalidInput(op, "output units (%d) cannot exceed input units (%d) for stage %s", stage.Output, stage.Input, name)
		}

		yield := float64(stage.Output) / float64(stage.Input)
		if yield < threshold {
			low = append(low, models.LowYieldStage{
				Name:   name,
				Yield:  yield,
				Input:  stage.Input,
				Output: stage.Output,
			})
		}
	}
	return low, nil
}
