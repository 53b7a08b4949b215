package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "bodymake"
redis_host = "localhost"
redis_port = "6379"
energy_density_estimator = 7200.0
energy_density_simulator = 6800.0
adaptation_factor = 30.0

[production]
host = ""
port = 9000
log_level = "debug"
logs_path = "/var/log/bodymake/service.log"
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "bodymake"
redis_host = "localhost"
redis_port = "6379"
`

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfigContent), 0o600))

	cfg, err := Load("development", configPath)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, "bodymake", cfg.PostgresDBName)
	assert.Equal(t, 7200.0, cfg.EnergyDensityEstimator)
	assert.Equal(t, 6800.0, cfg.EnergyDensitySimulator)

	prodCfg, err := Load("prod", configPath)
	require.NoError(t, err)
	assert.Equal(t, "debug", prodCfg.LogLevel)
	assert.Equal(t, "/var/log/bodymake/service.log", prodCfg.LogsPath)
}

func TestLoad_UnknownEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfigContent), 0o600))

	_, err := Load("staging", configPath)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("development", "/nonexistent/config.toml")
	require.Error(t, err)
}
