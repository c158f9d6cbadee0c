// Package repository defines the durable completion store and leaderboard
// cache.
package repository

import (
	"context"

	"github.com/psibladdd/dobro-school/internal/domain/progress"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank       int
	PlayerID   int64
	Score      int
	LastUpdate int64
}

// CompleteResult reports the outcome of a single task completion.
type CompleteResult struct {
	// Score is the player's aggregate score after the call, always
	// recomputed from the stored vector, never from a caller delta.
	Score int

	// AlreadyDone reports the previous state of the slot: true means the
	// flag was already set and the call changed nothing.
	AlreadyDone bool

	Record progress.PlayerRecord
}

// Store provides read/write access to completion state and the ranking
// derived from it. Ground truth and the leaderboard cache mutate together:
// no reader ever observes a vector whose score or rank lags behind.
type Store interface {
	// EnsureUser idempotently creates a zero-state record for the player
	// if absent and returns the current record. A newly created player is
	// materialized into the leaderboard cache in the same transaction.
	EnsureUser(ctx context.Context, playerID int64) (progress.PlayerRecord, error)

	// GetUser is a pure read. Returns ErrNotFound for an unknown player.
	GetUser(ctx context.Context, playerID int64) (progress.PlayerRecord, error)

	// CompleteTask sets the named flag, stamps last_update when the flag
	// actually flips, and rebuilds the leaderboard cache, all in one
	// atomic unit. Returns catalog.ErrUnknownSlot for codes outside the
	// catalog, leaving state untouched.
	CompleteTask(ctx context.Context, playerID int64, code string) (CompleteResult, error)

	// AllUsers enumerates ground truth for recompute-on-read fallbacks.
	AllUsers(ctx context.Context) ([]progress.PlayerRecord, error)

	// TopN returns the best min(n, N) entries ordered by rank. Returns
	// ErrCacheInconsistent if the scanned ranks are not dense 1..len.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// RankOf returns the cached entry for a player. ErrNotFound means the
	// player has never been materialized into the cache.
	RankOf(ctx context.Context, playerID int64) (Entry, error)

	// Count returns the number of known players.
	Count(ctx context.Context) (int, error)

	// RebuildLeaderboard forces a full recomputation of the cache from
	// ground truth in a single transaction.
	RebuildLeaderboard(ctx context.Context) error

	// VerifyLeaderboard checks the cache invariants (player set equality,
	// dense unique ranks) and returns ErrCacheInconsistent on violation.
	VerifyLeaderboard(ctx context.Context) error

	Close() error
}
