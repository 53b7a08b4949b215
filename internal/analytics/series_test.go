package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(day string) time.Time {
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}
	return d
}

func fptr(v float64) *float64 {
	return &v
}

func obs(day string, weight float64) logstore.Observation {
	return logstore.Observation{
		LogDate:   date(day),
		WeightKg:  weight,
		CreatedAt: date(day),
	}
}

func obsWithCal(day string, weight, calories float64) logstore.Observation {
	o := obs(day, weight)
	o.Calories = fptr(calories)
	return o
}

func TestNormalizer_dedupeKeepsLatestCreated(t *testing.T) {
	older := obsWithCal("2025-10-01", 72.0, 2000)
	older.CreatedAt = date("2025-10-01")
	newer := obsWithCal("2025-10-01", 71.4, 1800)
	newer.CreatedAt = date("2025-10-02")

	s := NewNormalizer(7).Normalize(
		[]logstore.Observation{older, newer, obs("2025-10-02", 71.2)},
		date("2025-12-01"),
	)

	require.Equal(t, 2, s.Len())
	require.Len(t, s.Logged, 2)
	assert.Equal(t, 71.4, s.Weight[0])
	assert.Equal(t, 1800.0, s.Calories[0])
}

func TestNormalizer_gapFreeAndForwardFill(t *testing.T) {
	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obsWithCal("2025-10-05", 71.0, 1900),
		obsWithCal("2025-10-01", 72.0, 2100),
	}, date("2025-12-01"))

	require.Equal(t, 5, s.Len())
	for i := 1; i < s.Len(); i++ {
		assert.Equal(t, 24*time.Hour, s.Days[i].Sub(s.Days[i-1]))
	}

	// gap days inherit the last known values
	assert.Equal(t, 72.0, s.Weight[2])
	assert.Equal(t, 2100.0, s.Calories[2])
	// but stay undefined in the as-logged view
	assert.True(t, math.IsNaN(s.RawWeight[2]))
	require.Len(t, s.Logged, 2)
}

func TestNormalizer_trailingMeansMinPeriods(t *testing.T) {
	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2025-10-01", 72.0),
		obs("2025-10-02", 71.0),
		obs("2025-10-03", 70.0),
	}, date("2025-12-01"))

	// the mean is over however many samples exist, not NaN until the
	// window fills
	assert.InDelta(t, 72.0, s.WeightMA[0], 1e-9)
	assert.InDelta(t, 71.5, s.WeightMA[1], 1e-9)
	assert.InDelta(t, 71.0, s.WeightMA[2], 1e-9)

	assert.True(t, math.IsNaN(s.WeightDelta[0]))
	assert.InDelta(t, -0.5, s.WeightDelta[1], 1e-9)

	// calories never logged: means stay undefined
	for i := range s.CalorieMA {
		assert.True(t, math.IsNaN(s.CalorieMA[i]))
	}
}

func TestNormalizer_sma7SkipsGapDays(t *testing.T) {
	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2025-10-01", 72.0),
		obs("2025-10-04", 70.0),
	}, date("2025-12-01"))

	require.Equal(t, 4, s.Len())
	// only the two raw samples contribute, the filled days are skipped
	assert.InDelta(t, 72.0, s.SMA7[2], 1e-9)
	assert.InDelta(t, 71.0, s.SMA7[3], 1e-9)
}

func TestNormalizer_daysOut(t *testing.T) {
	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2025-11-28", 70.0),
		obs("2025-12-02", 69.8),
	}, date("2025-12-01"))

	assert.Equal(t, -3, s.DaysOut[0])
	assert.Equal(t, 0, s.DaysOut[3])
	assert.Equal(t, 1, s.DaysOut[4])
}

func TestNormalizer_emptyInput(t *testing.T) {
	s := NewNormalizer(7).Normalize(nil, date("2025-12-01"))
	assert.True(t, s.Empty())
	assert.Equal(t, 0.0, s.LastWeight())
}
