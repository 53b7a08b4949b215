package analytics

import (
	"fmt"
	"math"
	"testing"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decliningSeries builds numDays consecutive days starting 2024-01-01,
// losing lossPerDay kg/day at a constant intake.
func decliningSeries(numDays int, startWeight, lossPerDay, intake float64) []logstore.Observation {
	observations := make([]logstore.Observation, 0, numDays)
	for i := 0; i < numDays; i++ {
		day := fmt.Sprintf("2024-01-%02d", i+1)
		observations = append(observations, obsWithCal(day, startWeight-lossPerDay*float64(i), intake))
	}
	return observations
}

func TestExpenditureEstimator_undefinedExactlyWithWeightDelta(t *testing.T) {
	s := NewNormalizer(7).Normalize(
		decliningSeries(10, 80, 0.2, 2000),
		date("2024-03-01"),
	)
	estimate := NewExpenditureEstimator(7200, 14).Estimate(s)

	require.Len(t, estimate.Raw, s.Len())
	for i := range estimate.Raw {
		assert.Equal(t, math.IsNaN(s.WeightDelta[i]), math.IsNaN(estimate.Raw[i]), "day %d", i)
	}
}

func TestExpenditureEstimator_steadyLoss(t *testing.T) {
	// 0.2 kg/day at 2000 kcal -> true expenditure 2000 + 0.2*7200 = 3440
	s := NewNormalizer(7).Normalize(
		decliningSeries(30, 80, 0.2, 2000),
		date("2024-03-01"),
	)
	estimate := NewExpenditureEstimator(7200, 14).Estimate(s)

	last := s.Len() - 1
	// once the moving-average lag has passed, the raw estimate is exact
	assert.InDelta(t, 3440, estimate.Raw[last], 1e-6)
	assert.InDelta(t, 3440, estimate.Smoothed[last], 1e-6)
	assert.InDelta(t, 3440, estimate.Latest(), 1e-6)
}

func TestExpenditureEstimator_smoothingLag(t *testing.T) {
	s := NewNormalizer(7).Normalize(
		decliningSeries(10, 80, 0.2, 2000),
		date("2024-03-01"),
	)
	estimate := NewExpenditureEstimator(7200, 14).Estimate(s)

	// day 10: the weight moving average has converged to the full
	// -0.2/day slope, the smoothed estimate still lags behind
	assert.InDelta(t, 3440, estimate.Raw[9], 1e-6)
	assert.Less(t, estimate.Smoothed[9], 3440.0)
	assert.Greater(t, estimate.Smoothed[9], 2700.0)
}

func TestExpenditureEstimate_latestEmpty(t *testing.T) {
	estimate := &ExpenditureEstimate{
		Raw:      []float64{math.NaN()},
		Smoothed: []float64{math.NaN()},
	}
	assert.True(t, math.IsNaN(estimate.Latest()))
}

func TestExpenditureEstimator_singleDay(t *testing.T) {
	s := NewNormalizer(7).Normalize(
		[]logstore.Observation{obsWithCal("2024-01-01", 80, 2000)},
		date("2024-03-01"),
	)
	estimate := NewExpenditureEstimator(7200, 14).Estimate(s)

	require.Len(t, estimate.Raw, 1)
	assert.True(t, math.IsNaN(estimate.Raw[0]))
	assert.True(t, math.IsNaN(estimate.Smoothed[0]))
}
