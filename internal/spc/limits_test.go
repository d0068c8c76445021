package spc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-yield/internal/models"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

var sampleSeries = models.DataSeries{5, 6, 8, 5, 7, 9, 12, 10, 11, 8, 6, 7, 9, 10, 14, 8, 7, 6, 9, 10}

func TestLimitsSampleSeries(t *testing.T) {
	limits, err := Limits(sampleSeries, DefaultSigma)
	require.NoError(t, err)

	assert.Equal(t, 20, limits.N)
	assert.InDelta(t, 8.35, limits.Mean, 1e-9)
	assert.InDelta(t, 2.368099, limits.StdDev, 1e-6)
	assert.InDelta(t, 15.454298, limits.UCL, 1e-6)
	assert.InDelta(t, 1.245702, limits.LCL, 1e-6)

	points, err := OutOfControlPoints(sampleSeries, limits.UCL, limits.LCL)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestLimitsSymmetricAndDeterministic(t *testing.T) {
	for _, sigma := range []float64{1, 2, 2.5, 3, 6} {
		first, err := Limits(sampleSeries, sigma)
		require.NoError(t, err)
		second, err := Limits(sampleSeries, sigma)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.InDelta(t, first.UCL-first.Mean, first.Mean-first.LCL, 1e-9)
	}
}

func TestLimitsConstantSeriesCollapse(t *testing.T) {
	limits, err := Limits(models.DataSeries{4, 4, 4}, 3)
	require.NoError(t, err)
	assert.Zero(t, limits.StdDev)
	assert.Equal(t, 4.0, limits.UCL)
	assert.Equal(t, 4.0, limits.LCL)
}

func TestLimitsErrors(t *testing.T) {
	_, err := Limits(models.DataSeries{1}, 3)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)

	_, err = Limits(nil, 3)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)

	_, err = Limits(models.DataSeries{1, 2}, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = Limits(models.DataSeries{1, math.NaN()}, 3)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestOutOfControlPointsStrictBounds(t *testing.T) {
	series := models.DataSeries{10, 12, 8, 12.5, 7.9, 10}
	points, err := OutOfControlPoints(series, 12, 8)
	require.NoError(t, err)
	assert.Equal(t, []models.OutOfControlPoint{{Index: 3, Value: 12.5}, {Index: 4, Value: 7.9}}, points)

	again, err := OutOfControlPoints(series, 12, 8)
	require.NoError(t, err)
	assert.Equal(t, points, again)
}

func TestOutOfControlPointsRejectsInvertedLimits(t *testing.T) {
	_, err := OutOfControlPoints(models.DataSeries{1}, 1, 2)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}
