package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterLogWrites          prometheus.Counter
	CounterFoodItems          prometheus.Counter
	CounterForecastCacheHit   prometheus.Counter
	CounterForecastCacheMiss  prometheus.Counter
	CounterHandleRequestPanic prometheus.Counter

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistPipelineDuration     prometheus.Histogram
	HistForecastFitDuration  prometheus.Histogram
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterLogWrites := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "log_writes",
		Help:      "The total number of daily log upserts",
	})
	counterFoodItems := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "food_items",
		Help:      "The total number of added food items",
	})
	counterForecastCacheHit := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "forecast_cache_hit",
		Help:      "The total number of forecast cache hits",
	})
	counterForecastCacheMiss := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "forecast_cache_miss",
		Help:      "The total number of forecast cache misses",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "gauge_requests",
		Help:      "The current number of active requests",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "gauge_life_signal",
		Help:      "Server life signal: 1 when up, 0 when down",
	})

	histPipelineDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of a full analytics pipeline run",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	histForecastFitDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "forecast_fit_duration_seconds",
		Help:      "Duration of a trend forecaster model fit",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of handled HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterLogWrites:          counterLogWrites,
		CounterFoodItems:          counterFoodItems,
		CounterForecastCacheHit:   counterForecastCacheHit,
		CounterForecastCacheMiss:  counterForecastCacheMiss,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		GaugeRequests:             gaugeRequests,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistPipelineDuration:      histPipelineDuration,
		HistForecastFitDuration:   histForecastFitDuration,
		HistogramRequestDuration:  histogramRequestDuration,
	}
}

// SetupPrometheus creates the registry with the default process/go collectors
// plus any extra collectors (e.g. the pgxpool collector).
func SetupPrometheus(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors...)
	return reg
}
