package analytics

import (
	"time"
)

// Tunable defaults for the energy constants. The estimator and the
// simulator constants are configured independently, both were revised
// during tuning and there is no reason to force them equal.
const (
	DefaultEnergyDensityEstimator = 7200
	DefaultEnergyDensitySimulator = 6800
	DefaultAdaptationFactor       = 30
)

type SimulationPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// SimulationTrajectory is the simulated daily weight from the day after
// the last observation through the goal date.
type SimulationTrajectory []SimulationPoint

// AdaptiveSimulator runs a day-by-day forward recurrence of weight under
// a fixed planned intake. Expenditure is not constant: every kg lost
// lowers it by the adaptation factor, so the trajectory bends instead of
// extrapolating straight.
type AdaptiveSimulator struct {
	energyDensity    float64
	adaptationFactor float64
}

// NewAdaptiveSimulator creates a simulator with the given kcal-per-kg
// energy density (non-positive falls back to 6800) and adaptation factor
// in kcal of expenditure lost per kg of body mass lost (0 is a valid
// value and disables adaptation).
func NewAdaptiveSimulator(energyDensity, adaptationFactor float64) *AdaptiveSimulator {
	if energyDensity <= 0 {
		energyDensity = DefaultEnergyDensitySimulator
	}
	return &AdaptiveSimulator{
		energyDensity:    energyDensity,
		adaptationFactor: adaptationFactor,
	}
}

// Simulate runs the recurrence. A goal date equal to the last observed
// date still produces one point; a goal date in the past produces an
// empty trajectory.
func (s *AdaptiveSimulator) Simulate(
	currentWeight float64,
	currentExpenditure float64,
	plannedIntake float64,
	lastObserved time.Time,
	goalDate time.Time,
) SimulationTrajectory {
	last := dateOnly(lastObserved)
	numDays := int(dateOnly(goalDate).Sub(last) / day)
	if numDays < 0 {
		return nil
	}
	if numDays == 0 {
		numDays = 1
	}

	trajectory := make(SimulationTrajectory, 0, numDays)
	simWeight := currentWeight
	simExpenditure := currentExpenditure
	for d := 1; d <= numDays; d++ {
		balance := plannedIntake - simExpenditure
		simWeight += balance / s.energyDensity
		cumulativeLoss := currentWeight - simWeight
		simExpenditure = currentExpenditure - cumulativeLoss*s.adaptationFactor
		trajectory = append(trajectory, SimulationPoint{
			Date:   last.Add(time.Duration(d) * day),
			Weight: simWeight,
		})
	}

	return trajectory
}
