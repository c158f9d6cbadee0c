package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound is returned by pure reads for a player the store has
	// never seen.
	ErrNotFound = errors.New("player not found")

	// ErrInvalidLimit is returned for non-positive leaderboard limits.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")

	// ErrStoreBusy marks transient contention: exclusive access could not
	// be acquired within the bounded wait. Callers retry with backoff.
	ErrStoreBusy = errors.New("store busy")

	// ErrStoreUnavailable marks a store that cannot serve at all (closed
	// pool, unreachable file). Callers degrade rather than retry forever.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCacheInconsistent marks a detected leaderboard invariant
	// violation (duplicate or gapped rank, player set mismatch). It is
	// never served silently; it forces a full rebuild.
	ErrCacheInconsistent = errors.New("leaderboard cache inconsistent")
)
