package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/psibladdd/dobro-school/internal/domain/catalog"
	"github.com/psibladdd/dobro-school/internal/domain/progress"
	"github.com/psibladdd/dobro-school/internal/domain/ranking"
	"github.com/psibladdd/dobro-school/internal/domain/scoring"
	"github.com/psibladdd/dobro-school/pkg/logger"
	"github.com/psibladdd/dobro-school/pkg/metrics"
)

const (
	defaultPoolSize    = 4
	defaultBusyTimeout = 30 * time.Second
)

// players is ground truth: one row per player, the completion vector
// packed into an integer mask. leaderboard is the derived cache; the
// UNIQUE constraint on rank makes a torn ranking unrepresentable.
const schema = `
CREATE TABLE IF NOT EXISTS players (
	id          INTEGER PRIMARY KEY,
	mask        INTEGER NOT NULL DEFAULT 0,
	last_update INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS leaderboard (
	player_id   INTEGER PRIMARY KEY,
	score       INTEGER NOT NULL,
	rank        INTEGER NOT NULL UNIQUE,
	last_update INTEGER NOT NULL
);
`

// SQLiteStore implements Store on a WAL-mode SQLite database. Writes
// are serialized through IMMEDIATE transactions; every mutation
// rebuilds the leaderboard cache inside the same transaction, so
// commits are all-or-nothing across ground truth and ranking.
type SQLiteStore struct {
	pool        *sqlitex.Pool
	deriver     scoring.Deriver
	log         logger.Logger
	now         func() int64
	path        string
	poolSize    int
	busyTimeout time.Duration
}

// NewSQLiteStore opens (and creates if needed) the database at path and
// applies the schema. Use ":memory:" only with a pool size of 1, since
// each in-memory connection is an independent database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrStoreUnavailable)
	}

	s := &SQLiteStore{
		deriver:     scoring.NewEqualWeight(),
		log:         logger.Named("repository"),
		now:         func() int64 { return time.Now().UnixMilli() },
		path:        path,
		poolSize:    defaultPoolSize,
		busyTimeout: defaultBusyTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=OFF",
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: s.poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStoreUnavailable, path, err)
	}
	s.pool = pool

	conn, release, err := s.take(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	release()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s.log.Info(ctx, "sqlite store opened",
		logger.String("path", path),
		logger.Int("pool_size", s.poolSize))

	return s, nil
}

// Close closes the connection pool. Blocks until all borrowed
// connections are returned.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("closing sqlite store: %w", err)
	}
	s.log.Info(context.Background(), "sqlite store closed", logger.String("path", s.path))
	return nil
}

// take borrows a connection, waiting at most busyTimeout. The returned
// release both puts the connection back and releases the acquisition
// context, in that order, because the pool ties the connection's
// interrupt channel to the context it was taken with.
func (s *SQLiteStore) take(ctx context.Context) (*sqlite.Conn, func(), error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.busyTimeout)
	conn, err := s.pool.Take(acquireCtx)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreBusy, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return conn, func() {
		s.pool.Put(conn)
		cancel()
	}, nil
}

// mapErr translates transient SQLite conditions into ErrStoreBusy so
// callers can apply their retry policy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultInterrupt:
		return fmt.Errorf("%w: %v", ErrStoreBusy, err)
	}
	return err
}

// EnsureUser implements Store.
func (s *SQLiteStore) EnsureUser(ctx context.Context, playerID int64) (record progress.PlayerRecord, err error) {
	conn, release, err := s.take(ctx)
	if err != nil {
		return progress.PlayerRecord{}, err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return progress.PlayerRecord{}, mapErr(err)
	}
	defer endTransaction(&err)

	created, err := s.insertIfAbsent(conn, playerID)
	if err != nil {
		return progress.PlayerRecord{}, err
	}
	if created {
		if err = s.rebuild(conn); err != nil {
			return progress.PlayerRecord{}, err
		}
	}

	record, found, err := s.readPlayer(conn, playerID)
	if err != nil {
		return progress.PlayerRecord{}, err
	}
	if !found {
		return progress.PlayerRecord{}, fmt.Errorf("player %d vanished after insert", playerID)
	}
	return record, nil
}

// GetUser implements Store.
func (s *SQLiteStore) GetUser(ctx context.Context, playerID int64) (progress.PlayerRecord, error) {
	start := time.Now()
	conn, release, err := s.take(ctx)
	if err != nil {
		return progress.PlayerRecord{}, err
	}
	defer release()

	record, found, err := s.readPlayer(conn, playerID)
	if err != nil {
		return progress.PlayerRecord{}, err
	}
	if !found {
		return progress.PlayerRecord{}, fmt.Errorf("%w: player %d", ErrNotFound, playerID)
	}
	metrics.RecordStoreQueryLatency(elapsedMs(start))
	return record, nil
}

// CompleteTask implements Store. The flag flip, the timestamp stamp and
// the cache rebuild commit together or not at all. A repeat completion
// leaves the stored timestamp untouched so the player keeps their
// earlier tie-break position.
func (s *SQLiteStore) CompleteTask(ctx context.Context, playerID int64, code string) (result CompleteResult, err error) {
	index, err := catalog.Index(code)
	if err != nil {
		return CompleteResult{}, err
	}

	start := time.Now()
	conn, release, err := s.take(ctx)
	if err != nil {
		return CompleteResult{}, err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return CompleteResult{}, mapErr(err)
	}
	defer endTransaction(&err)

	created, err := s.insertIfAbsent(conn, playerID)
	if err != nil {
		return CompleteResult{}, err
	}
	record, found, err := s.readPlayer(conn, playerID)
	if err != nil {
		return CompleteResult{}, err
	}
	if !found {
		return CompleteResult{}, fmt.Errorf("player %d vanished after insert", playerID)
	}

	next := record.Vector.With(index)
	if next == record.Vector {
		if created {
			if err = s.rebuild(conn); err != nil {
				return CompleteResult{}, err
			}
		}
		return CompleteResult{
			Score:       s.deriver.Score(record.Vector),
			AlreadyDone: true,
			Record:      record,
		}, nil
	}

	now := s.now()
	err = sqlitex.Execute(conn,
		`UPDATE players SET mask = ?, last_update = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{int64(next), now, playerID}})
	if err != nil {
		return CompleteResult{}, mapErr(err)
	}
	record.Vector = next
	record.LastUpdate = now

	if err = s.rebuild(conn); err != nil {
		return CompleteResult{}, err
	}

	metrics.RecordStoreUpdateLatency(elapsedMs(start))
	return CompleteResult{
		Score:  s.deriver.Score(next),
		Record: record,
	}, nil
}

// AllUsers implements Store.
func (s *SQLiteStore) AllUsers(ctx context.Context) ([]progress.PlayerRecord, error) {
	conn, release, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var records []progress.PlayerRecord
	err = sqlitex.Execute(conn,
		`SELECT id, mask, last_update FROM players`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, progress.PlayerRecord{
					ID:         stmt.ColumnInt64(0),
					Vector:     progress.Vector(stmt.ColumnInt64(1)),
					LastUpdate: stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, mapErr(err)
	}
	return records, nil
}

// TopN implements Store. Ranks are verified while scanning; a gap or
// duplicate means the cache violates its invariant and the caller must
// rebuild.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	start := time.Now()
	conn, release, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []Entry
	err = sqlitex.Execute(conn,
		`SELECT player_id, score, rank, last_update FROM leaderboard ORDER BY rank ASC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{n},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, Entry{
					PlayerID:   stmt.ColumnInt64(0),
					Score:      stmt.ColumnInt(1),
					Rank:       stmt.ColumnInt(2),
					LastUpdate: stmt.ColumnInt64(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, mapErr(err)
	}

	for i, entry := range entries {
		if entry.Rank != i+1 {
			metrics.RecordCacheInconsistency()
			return nil, fmt.Errorf("%w: rank %d at position %d", ErrCacheInconsistent, entry.Rank, i)
		}
	}

	metrics.RecordStoreQueryLatency(elapsedMs(start))
	return entries, nil
}

// RankOf implements Store.
func (s *SQLiteStore) RankOf(ctx context.Context, playerID int64) (Entry, error) {
	start := time.Now()
	conn, release, err := s.take(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer release()

	var entry Entry
	found := false
	err = sqlitex.Execute(conn,
		`SELECT score, rank, last_update FROM leaderboard WHERE player_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{playerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry = Entry{
					PlayerID:   playerID,
					Score:      stmt.ColumnInt(0),
					Rank:       stmt.ColumnInt(1),
					LastUpdate: stmt.ColumnInt64(2),
				}
				found = true
				return nil
			},
		})
	if err != nil {
		return Entry{}, mapErr(err)
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: player %d not ranked", ErrNotFound, playerID)
	}
	metrics.RecordStoreQueryLatency(elapsedMs(start))
	return entry, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	conn, release, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	count := 0
	err = sqlitex.Execute(conn,
		`SELECT COUNT(*) FROM players`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

// RebuildLeaderboard implements Store.
func (s *SQLiteStore) RebuildLeaderboard(ctx context.Context) (err error) {
	conn, release, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return mapErr(err)
	}
	defer endTransaction(&err)

	return s.rebuild(conn)
}

// VerifyLeaderboard implements Store. Checks that the cache covers
// exactly the player set, that every cached score matches the stored
// vector, and that ranks are dense 1..N with no duplicates.
func (s *SQLiteStore) VerifyLeaderboard(ctx context.Context) error {
	conn, release, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer release()

	var playerCount, cacheCount, minRank, maxRank, distinctRanks, orphans int
	err = sqlitex.Execute(conn,
		`SELECT
			(SELECT COUNT(*) FROM players),
			COUNT(*),
			COALESCE(MIN(rank), 0),
			COALESCE(MAX(rank), 0),
			COUNT(DISTINCT rank),
			(SELECT COUNT(*) FROM leaderboard lb LEFT JOIN players p ON p.id = lb.player_id WHERE p.id IS NULL)
		FROM leaderboard`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				playerCount = stmt.ColumnInt(0)
				cacheCount = stmt.ColumnInt(1)
				minRank = stmt.ColumnInt(2)
				maxRank = stmt.ColumnInt(3)
				distinctRanks = stmt.ColumnInt(4)
				orphans = stmt.ColumnInt(5)
				return nil
			},
		})
	if err != nil {
		return mapErr(err)
	}

	switch {
	case orphans != 0:
		err = fmt.Errorf("%w: %d cache rows without a player", ErrCacheInconsistent, orphans)
	case playerCount != cacheCount:
		err = fmt.Errorf("%w: %d players, %d cache rows", ErrCacheInconsistent, playerCount, cacheCount)
	case cacheCount > 0 && (minRank != 1 || maxRank != cacheCount || distinctRanks != cacheCount):
		err = fmt.Errorf("%w: ranks span %d..%d with %d distinct over %d rows",
			ErrCacheInconsistent, minRank, maxRank, distinctRanks, cacheCount)
	}
	if err != nil {
		metrics.RecordCacheInconsistency()
		return err
	}

	staleScores := 0
	err = sqlitex.Execute(conn,
		`SELECT p.mask, lb.score FROM players p JOIN leaderboard lb ON lb.player_id = p.id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				vector := progress.Vector(stmt.ColumnInt64(0))
				if s.deriver.Score(vector) != stmt.ColumnInt(1) {
					staleScores++
				}
				return nil
			},
		})
	if err != nil {
		return mapErr(err)
	}
	if staleScores != 0 {
		metrics.RecordCacheInconsistency()
		return fmt.Errorf("%w: %d cached scores disagree with stored vectors", ErrCacheInconsistent, staleScores)
	}
	return nil
}

// insertIfAbsent creates a zero-state row for the player and reports
// whether a row was actually created.
func (s *SQLiteStore) insertIfAbsent(conn *sqlite.Conn, playerID int64) (bool, error) {
	err := sqlitex.Execute(conn,
		`INSERT INTO players (id) VALUES (?) ON CONFLICT (id) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{playerID}})
	if err != nil {
		return false, mapErr(err)
	}
	return conn.Changes() > 0, nil
}

// readPlayer reads ground truth for one player on an already-held
// connection.
func (s *SQLiteStore) readPlayer(conn *sqlite.Conn, playerID int64) (progress.PlayerRecord, bool, error) {
	var record progress.PlayerRecord
	found := false
	err := sqlitex.Execute(conn,
		`SELECT id, mask, last_update FROM players WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{playerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = progress.PlayerRecord{
					ID:         stmt.ColumnInt64(0),
					Vector:     progress.Vector(stmt.ColumnInt64(1)),
					LastUpdate: stmt.ColumnInt64(2),
				}
				found = true
				return nil
			},
		})
	if err != nil {
		return progress.PlayerRecord{}, false, mapErr(err)
	}
	return record, found, nil
}

// rebuild recomputes the full leaderboard from ground truth on an
// already-held connection. Must run inside the caller's transaction so
// the new ranking becomes visible atomically with the mutation that
// triggered it.
func (s *SQLiteStore) rebuild(conn *sqlite.Conn) error {
	start := time.Now()

	var standings []ranking.Standing
	err := sqlitex.Execute(conn,
		`SELECT id, mask, last_update FROM players`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				vector := progress.Vector(stmt.ColumnInt64(1))
				standings = append(standings, ranking.Standing{
					PlayerID:   stmt.ColumnInt64(0),
					Score:      s.deriver.Score(vector),
					LastUpdate: stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return mapErr(err)
	}

	ranking.Sort(standings)

	if err := sqlitex.Execute(conn, `DELETE FROM leaderboard`, nil); err != nil {
		return mapErr(err)
	}
	for i, standing := range standings {
		err := sqlitex.Execute(conn,
			`INSERT INTO leaderboard (player_id, score, rank, last_update) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{standing.PlayerID, standing.Score, i + 1, standing.LastUpdate}})
		if err != nil {
			return mapErr(err)
		}
	}

	metrics.RecordLeaderboardRebuild(elapsedMs(start))
	metrics.UpdateTotalPlayers(len(standings))
	return nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
