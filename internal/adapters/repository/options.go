package repository

import (
	"time"

	"github.com/psibladdd/dobro-school/internal/domain/scoring"
	"github.com/psibladdd/dobro-school/pkg/logger"
)

// Option applies a configuration option to the SQLite store.
type Option func(*SQLiteStore)

// WithPoolSize sets the number of connections in the pool.
func WithPoolSize(size int) Option {
	return func(s *SQLiteStore) {
		if size > 0 {
			s.poolSize = size
		}
	}
}

// WithBusyTimeout bounds how long an operation waits for exclusive
// access before failing with ErrStoreBusy.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *SQLiteStore) {
		if timeout > 0 {
			s.busyTimeout = timeout
		}
	}
}

// WithDeriver sets the score deriver used to recompute scores from
// completion vectors.
func WithDeriver(d scoring.Deriver) Option {
	return func(s *SQLiteStore) {
		if d != nil {
			s.deriver = d
		}
	}
}

// WithLogger sets the logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *SQLiteStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNowFunc sets the clock used for last_update stamps, in
// milliseconds since the Unix epoch. Used by tests for deterministic
// timestamps.
func WithNowFunc(now func() int64) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}
