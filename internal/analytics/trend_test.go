package analytics

import (
	"fmt"
	"testing"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendForecaster_lowDataGuard(t *testing.T) {
	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2024-01-01", 80.0),
		obs("2024-01-02", 79.9),
		obs("2024-01-03", 79.7),
	}, date("2024-03-01"))

	curve := NewTrendForecaster().Forecast(s, date("2024-03-01"))

	// no model fit: a single point at the goal date holding the last weight
	require.Len(t, curve.Points, 1)
	assert.Equal(t, date("2024-03-01"), curve.Points[0].Date)
	assert.Equal(t, 79.7, curve.Points[0].Weight)
	assert.Equal(t, 79.7, curve.Final)
}

func TestTrendForecaster_linearDecline(t *testing.T) {
	var observations []logstore.Observation
	for i := 0; i < 60; i++ {
		day := date("2024-01-01").AddDate(0, 0, i)
		observations = append(observations, obs(day.Format("2006-01-02"), 80-0.1*float64(i)))
	}
	s := NewNormalizer(7).Normalize(observations, date("2024-03-31"))

	curve := NewTrendForecaster().Forecast(s, date("2024-03-31"))

	// horizon runs from the day after the last observation through the goal
	require.Equal(t, s.Len()+31, len(curve.Points))
	assert.Equal(t, date("2024-03-31"), curve.Points[len(curve.Points)-1].Date)

	// perfectly linear input: extrapolation stays on the line
	assert.InDelta(t, 80-0.1*90, curve.Final, 0.2)
	assert.Equal(t, curve.Points[len(curve.Points)-1].Weight, curve.Final)
}

func TestTrendForecaster_minimumHorizon(t *testing.T) {
	var observations []logstore.Observation
	for i := 0; i < 10; i++ {
		day := fmt.Sprintf("2024-01-%02d", i+1)
		observations = append(observations, obs(day, 75-0.05*float64(i)))
	}
	s := NewNormalizer(7).Normalize(observations, date("2023-12-01"))

	// goal already passed: still forecast one day past the series
	curve := NewTrendForecaster().Forecast(s, date("2023-12-01"))
	require.Equal(t, s.Len()+1, len(curve.Points))
	assert.Equal(t, date("2024-01-11"), curve.Points[len(curve.Points)-1].Date)
}
