package analytics

import (
	"testing"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastCache_roundTrip(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	cache := NewForecastCache(1<<20, metricsManager)
	forecaster := NewTrendForecaster()

	s := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2024-01-01", 80.0),
		obs("2024-01-02", 79.8),
	}, date("2024-02-01"))
	key := forecastCacheKey(s, date("2024-02-01"), forecaster)

	_, ok := cache.Get(key)
	require.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterForecastCacheMiss))

	curve := &ForecastCurve{
		Points: []ForecastPoint{{Date: date("2024-02-01"), Weight: 79.8}},
		Final:  79.8,
	}
	cache.Set(key, curve)

	cached, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, curve.Final, cached.Final)
	require.Len(t, cached.Points, 1)
	assert.True(t, cached.Points[0].Date.Equal(curve.Points[0].Date))
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterForecastCacheHit))
}

func TestForecastCache_invalidate(t *testing.T) {
	cache := NewForecastCache(1<<20, metrics.NewTestManager())
	forecaster := NewTrendForecaster()

	s := NewNormalizer(7).Normalize([]logstore.Observation{obs("2024-01-01", 80.0)}, date("2024-02-01"))
	key := forecastCacheKey(s, date("2024-02-01"), forecaster)
	cache.Set(key, &ForecastCurve{Final: 80})

	cache.Invalidate()

	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestForecastCacheKey_changesWithContent(t *testing.T) {
	forecaster := NewTrendForecaster()
	s1 := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2024-01-01", 80.0),
		obs("2024-01-02", 79.8),
	}, date("2024-02-01"))
	s2 := NewNormalizer(7).Normalize([]logstore.Observation{
		obs("2024-01-01", 80.0),
		obs("2024-01-02", 79.9),
	}, date("2024-02-01"))

	keyA := forecastCacheKey(s1, date("2024-02-01"), forecaster)
	keyB := forecastCacheKey(s2, date("2024-02-01"), forecaster)
	keyC := forecastCacheKey(s1, date("2024-02-02"), forecaster)

	assert.NotEqual(t, keyA, keyB)
	assert.NotEqual(t, keyA, keyC)
	// same content, same key
	assert.Equal(t, keyA, forecastCacheKey(s1, date("2024-02-01"), forecaster))
}
