package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateBacktest()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	if c.App.Environment != "" {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("invalid environment %q, must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{Field: "database.host", Message: "database host is required"})
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{Field: "database.port", Message: "database port must be between 1-65535"})
	}
	if c.Database.User == "" {
		errors = append(errors, ValidationError{Field: "database.user", Message: "database user is required"})
	}
	if c.Database.Database == "" {
		errors = append(errors, ValidationError{Field: "database.database", Message: "database name is required"})
	}
	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{Field: "database.pool_size", Message: "database pool size must be at least 1"})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "redis host is required"})
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{Field: "redis.port", Message: "redis port must be between 1-65535"})
	}
	if c.Redis.TTL < 0 {
		errors = append(errors, ValidationError{Field: "redis.ttl_seconds", Message: "redis ttl must not be negative"})
	}

	return errors
}

func (c *Config) validateBacktest() ValidationErrors {
	var errors ValidationErrors

	if _, err := c.Backtest.TimeframeDuration(); err != nil {
		errors = append(errors, ValidationError{Field: "backtest.timeframe", Message: "must be a valid duration, e.g. \"5m\""})
	}
	if c.Backtest.WaveIntervalMinutes < 1 {
		errors = append(errors, ValidationError{Field: "backtest.wave_interval_minutes", Message: "must be at least 1"})
	}
	if c.Backtest.Phase1Hours < 1 {
		errors = append(errors, ValidationError{Field: "backtest.phase1_hours", Message: "must be at least 1"})
	}
	if c.Backtest.LiquidationThreshold <= 0 || c.Backtest.LiquidationThreshold > 1 {
		errors = append(errors, ValidationError{Field: "backtest.liquidation_threshold", Message: "must be in (0,1]"})
	}
	if c.Backtest.MaxConcurrentRuns < 1 {
		errors = append(errors, ValidationError{Field: "backtest.max_concurrent_runs", Message: "must be at least 1"})
	}

	return errors
}
