package analytics

import (
	"math"
)

// ExpenditureEstimate is the reverse-engineered daily energy expenditure
// (TDEE): Raw per day, Smoothed as a trailing mean of Raw. Both are NaN
// wherever the weight delta is undefined.
type ExpenditureEstimate struct {
	Raw      []float64
	Smoothed []float64
}

// Latest returns the last defined smoothed estimate, NaN when none exists.
func (e *ExpenditureEstimate) Latest() float64 {
	for i := len(e.Smoothed) - 1; i >= 0; i-- {
		if !math.IsNaN(e.Smoothed[i]) {
			return e.Smoothed[i]
		}
	}
	return math.NaN()
}

type ExpenditureEstimator struct {
	energyDensity float64
	window        int
}

// NewExpenditureEstimator creates an estimator with the given kcal-per-kg
// energy density and smoothing window. Non-positive values fall back to
// the defaults 7200 kcal/kg and 14 days.
func NewExpenditureEstimator(energyDensity float64, window int) *ExpenditureEstimator {
	if energyDensity <= 0 {
		energyDensity = 7200
	}
	if window <= 0 {
		window = 14
	}
	return &ExpenditureEstimator{
		energyDensity: energyDensity,
		window:        window,
	}
}

// Estimate derives the per-day expenditure from calorie intake and weight
// change: eating at maintenance keeps weight flat, so the calories that
// "disappeared" into weight change are added back to the intake average.
func (e *ExpenditureEstimator) Estimate(s *Series) *ExpenditureEstimate {
	raw := make([]float64, s.Len())
	for i := range raw {
		if math.IsNaN(s.WeightDelta[i]) || math.IsNaN(s.CalorieMA[i]) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = s.CalorieMA[i] - s.WeightDelta[i]*e.energyDensity
	}

	return &ExpenditureEstimate{
		Raw:      raw,
		Smoothed: trailingMean(raw, e.window),
	}
}
