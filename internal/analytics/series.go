package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
)

const day = 24 * time.Hour

// Series is the gap-free daily view of the daily log, used for moving
// averages and forecasting. Parallel slices, NaN = undefined. The sparse
// as-logged view stays in Logged and must be used for any "most recent N
// actual logs" display, never the filled columns.
type Series struct {
	Logged []logstore.Observation

	Days        []time.Time
	Weight      []float64 // forward-filled
	RawWeight   []float64 // NaN on gap days
	Calories    []float64 // forward-filled
	ProteinG    []float64 // forward-filled
	FatG        []float64 // forward-filled
	CarbsG      []float64 // forward-filled
	WeightMA    []float64
	CalorieMA   []float64
	WeightDelta []float64
	SMA7        []float64
	DaysOut     []int
}

func (s *Series) Len() int {
	return len(s.Days)
}

func (s *Series) Empty() bool {
	return len(s.Days) == 0
}

// LastWeight returns the last observed (raw) weight, 0 for an empty series.
func (s *Series) LastWeight() float64 {
	if len(s.Logged) == 0 {
		return 0
	}
	return s.Logged[len(s.Logged)-1].WeightKg
}

type Normalizer struct {
	window int
}

// NewNormalizer creates a normalizer with the given trailing-mean window;
// non-positive window falls back to 7 days.
func NewNormalizer(window int) *Normalizer {
	if window <= 0 {
		window = 7
	}
	return &Normalizer{window: window}
}

// Normalize dedupes the observations by date (latest created_at wins),
// reindexes them to a contiguous daily calendar with forward fill, and
// computes the derived moving-average columns. Empty input yields an
// empty series.
func (n *Normalizer) Normalize(observations []logstore.Observation, goalDate time.Time) *Series {
	logged := dedupeByDate(observations)
	if len(logged) == 0 {
		return &Series{}
	}

	first := dateOnly(logged[0].LogDate)
	last := dateOnly(logged[len(logged)-1].LogDate)
	numDays := int(last.Sub(first)/day) + 1

	s := &Series{
		Logged:    logged,
		Days:      make([]time.Time, numDays),
		Weight:    make([]float64, numDays),
		RawWeight: make([]float64, numDays),
		Calories:  make([]float64, numDays),
		ProteinG:  make([]float64, numDays),
		FatG:      make([]float64, numDays),
		CarbsG:    make([]float64, numDays),
		DaysOut:   make([]int, numDays),
	}

	byDate := make(map[time.Time]logstore.Observation, len(logged))
	for _, obs := range logged {
		byDate[dateOnly(obs.LogDate)] = obs
	}

	weight := math.NaN()
	calories := math.NaN()
	protein, fat, carbs := math.NaN(), math.NaN(), math.NaN()
	goal := dateOnly(goalDate)
	for i := 0; i < numDays; i++ {
		d := first.Add(time.Duration(i) * day)
		s.Days[i] = d
		s.RawWeight[i] = math.NaN()
		if obs, ok := byDate[d]; ok {
			weight = obs.WeightKg
			s.RawWeight[i] = obs.WeightKg
			// a logged day without nutrition keeps the fill running
			if obs.Calories != nil {
				calories = *obs.Calories
			}
			if obs.ProteinG != nil {
				protein = *obs.ProteinG
			}
			if obs.FatG != nil {
				fat = *obs.FatG
			}
			if obs.CarbsG != nil {
				carbs = *obs.CarbsG
			}
		}
		s.Weight[i] = weight
		s.Calories[i] = calories
		s.ProteinG[i] = protein
		s.FatG[i] = fat
		s.CarbsG[i] = carbs
		s.DaysOut[i] = int(d.Sub(goal) / day)
	}

	s.WeightMA = trailingMean(s.Weight, n.window)
	s.CalorieMA = trailingMean(s.Calories, n.window)
	s.SMA7 = trailingMean(s.RawWeight, 7)

	s.WeightDelta = make([]float64, numDays)
	s.WeightDelta[0] = math.NaN()
	for i := 1; i < numDays; i++ {
		s.WeightDelta[i] = s.WeightMA[i] - s.WeightMA[i-1]
	}

	return s
}

// dedupeByDate keeps one observation per calendar date, the one with the
// latest created_at, and returns them sorted by date ascending.
func dedupeByDate(observations []logstore.Observation) []logstore.Observation {
	latest := make(map[time.Time]logstore.Observation, len(observations))
	for _, obs := range observations {
		key := dateOnly(obs.LogDate)
		if existing, ok := latest[key]; ok && !obs.CreatedAt.After(existing.CreatedAt) {
			continue
		}
		latest[key] = obs
	}

	deduped := make([]logstore.Observation, 0, len(latest))
	for _, obs := range latest {
		deduped = append(deduped, obs)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].LogDate.Before(deduped[j].LogDate)
	})
	return deduped
}

// trailingMean computes a trailing mean over the given window, skipping
// NaN entries; a position with no defined sample in its window stays NaN.
func trailingMean(values []float64, window int) []float64 {
	means := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum, count := 0.0, 0
		for j := start; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			count++
		}
		if count == 0 {
			means[i] = math.NaN()
			continue
		}
		means[i] = sum / float64(count)
	}
	return means
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
