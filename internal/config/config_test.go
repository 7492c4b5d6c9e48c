package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithoutAConfigFile(t *testing.T) {
	// Empty path makes Load search ./configs and . for config.yaml; since
	// neither exists in the test working directory, viper falls through to
	// SetDefault values via its ConfigFileNotFoundError tolerance.
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wave-backtester", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "5m", cfg.Backtest.Timeframe)
	assert.Equal(t, 15, cfg.Backtest.WaveIntervalMinutes)
	assert.Equal(t, 8, cfg.Backtest.MaxConcurrentRuns)
	assert.InDelta(t, 0.0004, cfg.Exchanges["binance"].CommissionRate, 1e-9)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "backtester", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=backtester sslmode=disable", db.GetDSN())
}

func TestRedisConfig_TTLDuration(t *testing.T) {
	r := RedisConfig{TTL: 300}
	assert.Equal(t, 300_000_000_000, int(r.TTLDuration()))
}

func TestBacktestConfig_TimeframeDuration(t *testing.T) {
	bc := BacktestConfig{Timeframe: "5m"}
	d, err := bc.TimeframeDuration()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", d.String())

	bad := BacktestConfig{Timeframe: "not-a-duration"}
	_, err = bad.TimeframeDuration()
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "wave-backtester", Environment: "development"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Database: "backtester", PoolSize: 10},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, TTL: 300},
		Backtest: BacktestConfig{
			Timeframe:            "5m",
			WaveIntervalMinutes:  15,
			Phase1Hours:          24,
			BreakevenWindowHours: 8,
			LiquidationThreshold: 0.9,
			MaxConcurrentRuns:    8,
		},
	}
}

func TestConfig_Validate_RejectsInvalidEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "sandbox"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestConfig_Validate_RejectsBadTimeframe(t *testing.T) {
	cfg := validConfig()
	cfg.Backtest.Timeframe = "nonsense"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backtest.timeframe")
}

func TestConfig_Validate_RejectsOutOfRangeLiquidationThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Backtest.LiquidationThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backtest.liquidation_threshold")
}

func TestConfig_Validate_PassesOnValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}
