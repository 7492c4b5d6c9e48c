package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the backtest engine.
type Config struct {
	App        AppConfig                    `mapstructure:"app"`
	Database   DatabaseConfig               `mapstructure:"database"`
	Redis      RedisConfig                  `mapstructure:"redis"`
	Backtest   BacktestConfig               `mapstructure:"backtest"`
	Exchanges  map[string]ExchangeFeeConfig `mapstructure:"exchanges"`
	Monitoring MonitoringConfig             `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the candle cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl_seconds"`
}

// BacktestConfig holds the backtest section of the config file. cmd/backtest
// reads only Timeframe (the candle bar size passed to the session runner);
// the other fields are loaded and validated but are not applied to a
// session's StrategyParams.
type BacktestConfig struct {
	Timeframe            string  `mapstructure:"timeframe"` // candle bar size, e.g. "5m"
	WaveIntervalMinutes  int     `mapstructure:"wave_interval_minutes"`
	Phase1Hours          int     `mapstructure:"phase1_hours"`
	BreakevenWindowHours int     `mapstructure:"breakeven_window_hours"`
	SmartLossPctPerHour  float64 `mapstructure:"smart_loss_pct_per_hour"`
	LiquidationThreshold float64 `mapstructure:"liquidation_threshold"`
	ForcedCloseMaxLoss   float64 `mapstructure:"forced_close_max_loss_fraction"`
	MaxConcurrentRuns    int     `mapstructure:"max_concurrent_runs"`
}

// ExchangeFeeConfig carries per-exchange commission/slippage values. They are
// loaded into Config.Exchanges but are not used when a session resolves its
// StrategyParams, which come from the backtest history and YAML overrides.
type ExchangeFeeConfig struct {
	CommissionRate float64 `mapstructure:"commission_rate"`
	SlippagePct    float64 `mapstructure:"slippage_pct"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BACKTEST")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wave-backtester")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "backtester")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_seconds", 300)

	v.SetDefault("backtest.timeframe", "5m")
	v.SetDefault("backtest.wave_interval_minutes", 15)
	v.SetDefault("backtest.phase1_hours", 24)
	v.SetDefault("backtest.breakeven_window_hours", 8)
	v.SetDefault("backtest.smart_loss_pct_per_hour", 0.5)
	v.SetDefault("backtest.liquidation_threshold", 0.9)
	v.SetDefault("backtest.forced_close_max_loss_fraction", 0.95)
	v.SetDefault("backtest.max_concurrent_runs", 8)

	v.SetDefault("exchanges.binance.commission_rate", 0.0004)
	v.SetDefault("exchanges.binance.slippage_pct", 0.0005)

	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TTLDuration returns the candle cache entry lifetime.
func (c *RedisConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// TimeframeDuration parses the configured candle bar size.
func (c *BacktestConfig) TimeframeDuration() (time.Duration, error) {
	return time.ParseDuration(c.Timeframe)
}

// WaveInterval returns the configured wave cadence.
func (c *BacktestConfig) WaveInterval() time.Duration {
	return time.Duration(c.WaveIntervalMinutes) * time.Minute
}

// Phase1Duration returns the configured Phase 1 window.
func (c *BacktestConfig) Phase1Duration() time.Duration {
	return time.Duration(c.Phase1Hours) * time.Hour
}

// BreakevenWindowDuration returns the configured Phase 2 window.
func (c *BacktestConfig) BreakevenWindowDuration() time.Duration {
	return time.Duration(c.BreakevenWindowHours) * time.Hour
}
