// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file path.
	DBPath string `koanf:"db_path"`

	// DBPoolSize sets the number of connections in the store pool.
	DBPoolSize int `koanf:"db_pool_size"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// BusyTimeoutMS bounds how long a store operation waits for
	// exclusive access before failing as busy.
	BusyTimeoutMS int `koanf:"busy_timeout_ms"`

	// RetryAttempts and RetryBackoffMS shape the busy-store retry
	// policy.
	RetryAttempts  int `koanf:"retry_attempts"`
	RetryBackoffMS int `koanf:"retry_backoff_ms"`

	// VerifyIntervalMS is the period of the background leaderboard
	// verification loop. Zero disables it.
	VerifyIntervalMS int `koanf:"verify_interval_ms"`

	// OperatorIDs is the allow-list for the completion endpoint. Empty
	// disables the check.
	OperatorIDs []string `koanf:"operator_ids"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBPath:              "progress.db",
		DBPoolSize:          4,
		MaxLeaderboardLimit: 100,
		BusyTimeoutMS:       30_000,
		RetryAttempts:       3,
		RetryBackoffMS:      50,
		VerifyIntervalMS:    60_000,
		OperatorIDs:         nil,
	}
}
