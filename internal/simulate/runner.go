package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/psibladdd/dobro-school/pkg/logger"
)

const healthDeadline = 30 * time.Second

// submitResult carries one completion outcome back to the runner.
type submitResult struct {
	status  int
	applied bool
	repeat  bool
	err     error
}

// Run executes the complete simulation: submit the plan concurrently,
// then read back every rank and the leaderboard and verify them
// against each other and against the plan.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.NumPlayers),
		logger.Int("completionsPerPlayer", cfg.CompletionsPerPlayer),
		logger.Int("workers", cfg.Workers))

	httpClient := newClient(cfg)
	if err := httpClient.waitHealthy(ctx, healthDeadline); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	plan := GeneratePlan(ctx, cfg, rng)
	stats.CompletionsPlanned = len(plan.Completions)

	if err := submitPlan(ctx, cfg, httpClient, plan, stats); err != nil {
		return err
	}

	ranks, err := retrieveRanks(ctx, httpClient, plan, stats)
	if err != nil {
		return err
	}

	var board []BoardEntry
	status, err := httpClient.getJSON(ctx, fmt.Sprintf("/api/leaderboard?limit=%d", cfg.TopN), &board)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("leaderboard retrieval failed with status %d", status)
	}
	stats.BoardEntries = len(board)

	if err := Verify(plan, ranks, board); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "simulation completed",
		logger.Int("planned", stats.CompletionsPlanned),
		logger.Int("submitted", stats.CompletionsSubmitted),
		logger.Int("applied", stats.CompletionsApplied),
		logger.Int("repeated", stats.CompletionsRepeated),
		logger.Int("failed", stats.CompletionsFailed),
		logger.Int("ranks", stats.RanksRetrieved),
		logger.Int("boardEntries", stats.BoardEntries),
		logger.String("duration", stats.Duration.String()))
	return nil
}

// submitPlan pushes all scripted completions through a worker pool.
func submitPlan(ctx context.Context, cfg *Config, httpClient *client, plan *Plan, stats *Stats) error {
	jobs := make(chan Completion)
	results := make(chan submitResult, len(plan.Completions))

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for completion := range jobs {
				var resp struct {
					Score       int  `json:"score"`
					AlreadyDone bool `json:"already_done"`
				}
				status, err := httpClient.postJSON(ctx, "/api/tasks/complete", completion, &resp)
				results <- submitResult{
					status:  status,
					applied: err == nil && status == http.StatusOK && !resp.AlreadyDone,
					repeat:  err == nil && status == http.StatusOK && resp.AlreadyDone,
					err:     err,
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, completion := range plan.Completions {
			select {
			case <-ctx.Done():
				return
			case jobs <- completion:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		stats.CompletionsSubmitted++
		switch {
		case result.err != nil, result.status != http.StatusOK:
			stats.CompletionsFailed++
		case result.applied:
			stats.CompletionsApplied++
		case result.repeat:
			stats.CompletionsRepeated++
		}
	}

	if stats.CompletionsFailed > 0 {
		return fmt.Errorf("%d of %d completions failed", stats.CompletionsFailed, stats.CompletionsSubmitted)
	}
	return nil
}

// retrieveRanks reads every planned player's rank back.
func retrieveRanks(ctx context.Context, httpClient *client, plan *Plan, stats *Stats) ([]RankEntry, error) {
	ranks := make([]RankEntry, 0, len(plan.ExpectedScore))
	for playerID := range plan.ExpectedScore {
		var entry RankEntry
		status, err := httpClient.getJSON(ctx, fmt.Sprintf("/api/rank/%d", playerID), &entry)
		if err != nil {
			return nil, fmt.Errorf("rank retrieval for player %d failed: %w", playerID, err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("rank retrieval for player %d failed with status %d", playerID, status)
		}
		ranks = append(ranks, entry)
		stats.RanksRetrieved++
	}
	return ranks, nil
}
