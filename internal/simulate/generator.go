package simulate

import (
	"context"
	"math/rand"

	"github.com/psibladdd/dobro-school/internal/domain/catalog"
	"github.com/psibladdd/dobro-school/pkg/logger"
)

// GeneratePlan scripts a workload: each player submits a fixed number
// of completion calls over randomly drawn task codes. Draws repeat on
// purpose so the run exercises the idempotent path.
func GeneratePlan(ctx context.Context, cfg *Config, rng *rand.Rand) *Plan {
	codes := catalog.Codes()
	plan := &Plan{
		ExpectedScore: make(map[int64]int, cfg.NumPlayers),
	}

	for p := 0; p < cfg.NumPlayers; p++ {
		playerID := int64(p + 1)
		seen := make(map[string]struct{}, cfg.CompletionsPerPlayer)
		for c := 0; c < cfg.CompletionsPerPlayer; c++ {
			code := codes[rng.Intn(len(codes))]
			plan.Completions = append(plan.Completions, Completion{
				UserID: playerID,
				TaskID: code,
			})
			seen[code] = struct{}{}
		}
		plan.ExpectedScore[playerID] = len(seen)
	}

	// Shuffle so players interleave instead of submitting in blocks.
	rng.Shuffle(len(plan.Completions), func(i, j int) {
		plan.Completions[i], plan.Completions[j] = plan.Completions[j], plan.Completions[i]
	})

	logger.Get().Info(ctx, "generated simulation plan",
		logger.Int("players", cfg.NumPlayers),
		logger.Int("completions", len(plan.Completions)))
	return plan
}
