package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`

	SentryEnabled bool `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// path of the competition history CSV; empty disables the feature
	CompetitionHistoryCsvPath string `toml:"competition_history_csv_path"`

	// allowed daily log writes per minute, per client
	LogWriteRateLimitAllowedPerMin int `toml:"log_write_rate_limit_allowed_per_min"`

	// analytics tunables; zero values fall back to analytics defaults
	WeightMovingAvgWindow  int     `toml:"weight_moving_avg_window"`
	ExpenditureSmoothing   int     `toml:"expenditure_smoothing_window"`
	EnergyDensityEstimator float64 `toml:"energy_density_estimator"`
	EnergyDensitySimulator float64 `toml:"energy_density_simulator"`
	AdaptationFactor       float64 `toml:"adaptation_factor"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var configToml Toml
	if err := toml.Unmarshal(configBytes, &configToml); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg, err := configToml.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.Environment = env
	return cfg, nil
}
