package analytics

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

// ForecastCache memoizes fitted forecast curves. Keys are content hashes
// of the full model input, so a changed series can never read a stale
// entry; Invalidate additionally clears everything after log writes to
// bound memory.
type ForecastCache struct {
	cache   *freecache.Cache
	metrics *metrics.Manager
}

func NewForecastCache(sizeBytes int, metricsManager *metrics.Manager) *ForecastCache {
	return &ForecastCache{
		cache:   freecache.NewCache(sizeBytes),
		metrics: metricsManager,
	}
}

func (c *ForecastCache) Get(key []byte) (*ForecastCurve, bool) {
	value, err := c.cache.Get(key)
	if err != nil {
		c.metrics.CounterForecastCacheMiss.Inc()
		return nil, false
	}

	var curve ForecastCurve
	if err := json.Unmarshal(value, &curve); err != nil {
		log.Errorf("forecast cache: unmarshal cached curve: %s", err)
		c.metrics.CounterForecastCacheMiss.Inc()
		return nil, false
	}

	c.metrics.CounterForecastCacheHit.Inc()
	return &curve, true
}

func (c *ForecastCache) Set(key []byte, curve *ForecastCurve) {
	value, err := json.Marshal(curve)
	if err != nil {
		log.Errorf("forecast cache: marshal curve: %s", err)
		return
	}
	if err := c.cache.Set(key, value, 0); err != nil {
		log.Warnf("forecast cache: set: %s", err)
	}
}

// Invalidate drops all cached curves.
func (c *ForecastCache) Invalidate() {
	c.cache.Clear()
}

// forecastCacheKey hashes the series content (dates and weights), the
// goal date and the model hyper-parameters.
func forecastCacheKey(s *Series, goalDate time.Time, f *TrendForecaster) []byte {
	digest := xxhash.New()
	var buf [8]byte

	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = digest.Write(buf[:])
	}
	writeFloat := func(v float64) {
		writeUint(math.Float64bits(v))
	}

	for i := range s.Days {
		writeUint(uint64(s.Days[i].Unix()))
		writeFloat(s.Weight[i])
	}
	writeUint(uint64(dateOnly(goalDate).Unix()))
	writeFloat(f.changepointRange)
	writeUint(uint64(f.numChangepoints))
	writeFloat(f.changepointScale)
	writeUint(uint64(f.fourierOrderWeekly))

	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, digest.Sum64())
	return key
}
