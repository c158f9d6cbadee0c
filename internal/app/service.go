// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/psibladdd/dobro-school/internal/adapters/repository"
	"github.com/psibladdd/dobro-school/internal/domain/catalog"
	"github.com/psibladdd/dobro-school/internal/domain/progress"
	"github.com/psibladdd/dobro-school/internal/domain/ranking"
	"github.com/psibladdd/dobro-school/internal/domain/scoring"
	"github.com/psibladdd/dobro-school/pkg/logger"
	"github.com/psibladdd/dobro-school/pkg/metrics"
)

// State is the full per-player view served to clients: completed task
// codes, the derived score and the current leaderboard position.
// Degraded marks a response assembled while the store was unreachable;
// its progress fields are zero values and must not be persisted back.
type State struct {
	PlayerID int64
	Score    int
	Done     []string
	Rank     int
	Ranked   bool
	Degraded bool
}

// Completion is the outcome of a task completion as served to clients.
type Completion struct {
	PlayerID    int64
	TaskID      string
	Score       int
	AlreadyDone bool
}

// Service implements the API dependencies for the completion tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deriver scoring.Deriver

	// Configuration
	dbPath         string
	poolSize       int
	busyTimeout    time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
	verifyInterval time.Duration
	maxLimit       int

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithPoolSize sets the store connection pool size.
func WithPoolSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.poolSize = size
		}
	}
}

// WithBusyTimeout bounds how long a single store operation waits for
// exclusive access.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.busyTimeout = timeout
		}
	}
}

// WithRetryPolicy sets how many times a busy store operation is retried
// and the base backoff between attempts.
func WithRetryPolicy(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts >= 0 {
			s.retryAttempts = attempts
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// WithVerifyInterval sets the period of the background leaderboard
// verification loop. Zero disables the loop.
func WithVerifyInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval >= 0 {
			s.verifyInterval = interval
		}
	}
}

// WithMaxLeaderboardLimit caps the page size served by TopK.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// WithStore injects a pre-built store, bypassing the SQLite open in
// Start. Used by tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		deriver:        scoring.NewEqualWeight(),
		dbPath:         "progress.db",
		poolSize:       4,
		busyTimeout:    30 * time.Second,
		retryAttempts:  3,
		retryBackoff:   50 * time.Millisecond,
		verifyInterval: time.Minute,
		maxLimit:       100,
		stopCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and launches the background verification loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	s.logger.Info(ctx, "starting completion tracker service")

	if s.store == nil {
		store, err := repository.NewSQLiteStore(ctx, s.dbPath,
			repository.WithPoolSize(s.poolSize),
			repository.WithBusyTimeout(s.busyTimeout),
			repository.WithDeriver(s.deriver),
			repository.WithLogger(s.logger.Named("repository")),
		)
		if err != nil {
			return err
		}
		s.store = store
	}

	// Heal any inconsistency left by a previous crash before serving.
	if err := s.store.VerifyLeaderboard(ctx); err != nil {
		s.logger.Warn(ctx, "leaderboard cache inconsistent on startup, rebuilding", logger.Error(err))
		if err := s.store.RebuildLeaderboard(ctx); err != nil {
			return err
		}
	}

	if s.verifyInterval > 0 {
		s.wg.Add(1)
		go s.verifyLoop()
	}

	s.started = true
	s.logger.Info(ctx, "completion tracker service started",
		logger.String("dbPath", s.dbPath),
		logger.Int("maxLimit", s.maxLimit),
		logger.Int("retryAttempts", s.retryAttempts),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping completion tracker service")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "completion tracker service stopped")
}

// verifyLoop periodically checks the leaderboard cache invariants and
// rebuilds on violation.
func (s *Service) verifyLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.verifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.busyTimeout)
			err := s.store.VerifyLeaderboard(ctx)
			if errors.Is(err, repository.ErrCacheInconsistent) {
				s.logger.Warn(ctx, "leaderboard cache inconsistent, rebuilding", logger.Error(err))
				if err := s.store.RebuildLeaderboard(ctx); err != nil {
					s.logger.Error(ctx, "leaderboard rebuild failed", logger.Error(err))
				}
			} else if err != nil {
				s.logger.Warn(ctx, "leaderboard verification failed", logger.Error(err))
			}
			cancel()
		}
	}
}

// withRetry runs op, retrying with linear backoff while the store
// reports transient contention.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordStoreBusyRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryBackoff * time.Duration(attempt)):
			}
		}
		if err = op(); !errors.Is(err, repository.ErrStoreBusy) {
			return err
		}
	}
	return err
}

// EnsureUser makes sure the player exists, creating a zero-state record
// on first contact.
func (s *Service) EnsureUser(ctx context.Context, playerID int64) (progress.PlayerRecord, error) {
	var record progress.PlayerRecord
	err := s.withRetry(ctx, func() error {
		var opErr error
		record, opErr = s.store.EnsureUser(ctx, playerID)
		return opErr
	})
	return record, err
}

// GetState returns the player's full state, creating the player on
// first contact. When the store cannot serve at all, a degraded
// zero-state view is returned instead of an error so read traffic
// survives storage outages.
func (s *Service) GetState(ctx context.Context, playerID int64) (State, error) {
	record, err := s.EnsureUser(ctx, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrStoreBusy) || errors.Is(err, repository.ErrStoreUnavailable) {
			s.logger.Warn(ctx, "serving degraded state",
				logger.Int64("playerID", playerID),
				logger.Error(err))
			metrics.RecordDegradedRead()
			return State{PlayerID: playerID, Done: []string{}, Degraded: true}, nil
		}
		return State{}, err
	}

	state := State{
		PlayerID: playerID,
		Score:    s.deriver.Score(record.Vector),
		Done:     record.Vector.Done(),
	}

	entry, err := s.store.RankOf(ctx, playerID)
	switch {
	case err == nil:
		state.Rank = entry.Rank
		state.Ranked = true
	case errors.Is(err, repository.ErrNotFound):
		// EnsureUser materializes the cache row, so this only happens
		// if a concurrent rebuild raced us. Serve unranked.
	default:
		return State{}, err
	}
	return state, nil
}

// CompleteTask marks a task slot as completed for the player. Unknown
// codes are rejected before any state is touched. Repeats are
// idempotent and reported as such.
func (s *Service) CompleteTask(ctx context.Context, playerID int64, taskID string) (Completion, error) {
	var result repository.CompleteResult
	err := s.withRetry(ctx, func() error {
		var opErr error
		result, opErr = s.store.CompleteTask(ctx, playerID, taskID)
		return opErr
	})
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownSlot) {
			metrics.RecordUnknownSlot()
		}
		return Completion{}, err
	}

	if result.AlreadyDone {
		metrics.RecordRepeatCompletion()
	} else {
		metrics.RecordCompletion()
	}

	return Completion{
		PlayerID:    playerID,
		TaskID:      taskID,
		Score:       result.Score,
		AlreadyDone: result.AlreadyDone,
	}, nil
}

// TopK returns the best min(k, N) leaderboard entries. Requests above
// the configured cap are clamped. A detected cache inconsistency
// triggers a rebuild and one retry; if the cache still cannot serve,
// the page is recomputed directly from ground truth.
func (s *Service) TopK(ctx context.Context, k int) ([]repository.Entry, error) {
	if k < 1 {
		return nil, repository.ErrInvalidLimit
	}
	if k > s.maxLimit {
		k = s.maxLimit
	}

	entries, err := s.store.TopN(ctx, k)
	if !errors.Is(err, repository.ErrCacheInconsistent) {
		return entries, err
	}

	s.logger.Warn(ctx, "leaderboard cache inconsistent on read, rebuilding", logger.Error(err))
	if rebuildErr := s.store.RebuildLeaderboard(ctx); rebuildErr == nil {
		if entries, err = s.store.TopN(ctx, k); !errors.Is(err, repository.ErrCacheInconsistent) {
			return entries, err
		}
	}
	return s.recomputeTopK(ctx, k)
}

// recomputeTopK derives a leaderboard page straight from ground truth,
// bypassing the cache.
func (s *Service) recomputeTopK(ctx context.Context, k int) ([]repository.Entry, error) {
	records, err := s.store.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	standings := make([]ranking.Standing, len(records))
	for i, record := range records {
		standings[i] = ranking.Standing{
			PlayerID:   record.ID,
			Score:      s.deriver.Score(record.Vector),
			LastUpdate: record.LastUpdate,
		}
	}
	ranking.Sort(standings)

	if k > len(standings) {
		k = len(standings)
	}
	entries := make([]repository.Entry, k)
	for i := 0; i < k; i++ {
		entries[i] = repository.Entry{
			Rank:       i + 1,
			PlayerID:   standings[i].PlayerID,
			Score:      standings[i].Score,
			LastUpdate: standings[i].LastUpdate,
		}
	}
	return entries, nil
}

// RankOf returns the player's leaderboard entry. The second result is
// false when the player has never been materialized.
func (s *Service) RankOf(ctx context.Context, playerID int64) (repository.Entry, bool, error) {
	entry, err := s.store.RankOf(ctx, playerID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Entry{}, false, nil
	}
	if err != nil {
		return repository.Entry{}, false, err
	}
	return entry, true, nil
}

// TotalPlayers returns the number of players known to the store.
func (s *Service) TotalPlayers(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	metrics.UpdateTotalPlayers(count)
	return count, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"dbPath":        s.dbPath,
		"maxLimit":      s.maxLimit,
		"retryAttempts": s.retryAttempts,
		"taskSlots":     catalog.Size,
	}

	if s.started {
		ctx, cancel := context.WithTimeout(context.Background(), s.busyTimeout)
		defer cancel()
		if count, err := s.TotalPlayers(ctx); err == nil {
			stats["totalPlayers"] = count
		}
	}

	return stats
}
