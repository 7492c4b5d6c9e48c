// Package config provides configuration management for the backtest engine.
// This file centralizes port constants to avoid duplication.
package config

// Infrastructure service ports.
const (
	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379
)

// MetricsPort is the default port the session runner exposes Prometheus
// metrics on.
const MetricsPort = 9100
