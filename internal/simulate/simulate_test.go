package simulate

import (
	"context"
	"math/rand"
	"testing"

	"github.com/psibladdd/dobro-school/internal/domain/catalog"
)

func TestGeneratePlan(t *testing.T) {
	cfg := &Config{NumPlayers: 10, CompletionsPerPlayer: 8}
	plan := GeneratePlan(context.Background(), cfg, rand.New(rand.NewSource(1)))

	if len(plan.Completions) != 80 {
		t.Fatalf("len(completions) = %d, want 80", len(plan.Completions))
	}
	if len(plan.ExpectedScore) != 10 {
		t.Fatalf("len(expected) = %d, want 10", len(plan.ExpectedScore))
	}

	perPlayer := make(map[int64]map[string]struct{})
	for _, completion := range plan.Completions {
		if _, err := catalog.Index(completion.TaskID); err != nil {
			t.Fatalf("plan contains invalid code %q", completion.TaskID)
		}
		if completion.UserID < 1 || completion.UserID > 10 {
			t.Fatalf("plan contains unplanned player %d", completion.UserID)
		}
		if perPlayer[completion.UserID] == nil {
			perPlayer[completion.UserID] = make(map[string]struct{})
		}
		perPlayer[completion.UserID][completion.TaskID] = struct{}{}
	}

	for playerID, distinct := range perPlayer {
		if want := plan.ExpectedScore[playerID]; len(distinct) != want {
			t.Errorf("player %d: %d distinct codes, expected score %d", playerID, len(distinct), want)
		}
	}
}

func TestVerify(t *testing.T) {
	plan := &Plan{ExpectedScore: map[int64]int{1: 3, 2: 2, 3: 2}}
	goodRanks := []RankEntry{
		{UserID: 1, Rank: 1, Score: 3, LastUpdate: 5000},
		{UserID: 2, Rank: 2, Score: 2, LastUpdate: 2000},
		{UserID: 3, Rank: 3, Score: 2, LastUpdate: 4000},
	}
	goodBoard := []BoardEntry{
		{Rank: 1, UserID: 1, Score: 3, LastUpdate: 5000},
		{Rank: 2, UserID: 2, Score: 2, LastUpdate: 2000},
		{Rank: 3, UserID: 3, Score: 2, LastUpdate: 4000},
	}

	if err := Verify(plan, goodRanks, goodBoard); err != nil {
		t.Fatalf("consistent data rejected: %v", err)
	}

	t.Run("score mismatch", func(t *testing.T) {
		bad := append([]RankEntry{}, goodRanks...)
		bad[0].Score = 5
		if err := Verify(plan, bad, goodBoard); err == nil {
			t.Fatal("score mismatch not detected")
		}
	})

	t.Run("duplicate rank", func(t *testing.T) {
		bad := append([]RankEntry{}, goodRanks...)
		bad[2].Rank = 2
		if err := Verify(plan, bad, goodBoard); err == nil {
			t.Fatal("duplicate rank not detected")
		}
	})

	t.Run("gapped ranks", func(t *testing.T) {
		bad := append([]RankEntry{}, goodRanks...)
		bad[2].Rank = 4
		if err := Verify(plan, bad, goodBoard); err == nil {
			t.Fatal("rank gap not detected")
		}
	})

	t.Run("tie broken against earlier finisher", func(t *testing.T) {
		bad := []RankEntry{
			{UserID: 1, Rank: 1, Score: 3, LastUpdate: 5000},
			{UserID: 3, Rank: 2, Score: 2, LastUpdate: 4000},
			{UserID: 2, Rank: 3, Score: 2, LastUpdate: 2000},
		}
		if err := Verify(plan, bad, nil); err == nil {
			t.Fatal("inverted tie-break not detected")
		}
	})

	t.Run("board disagrees", func(t *testing.T) {
		bad := append([]BoardEntry{}, goodBoard...)
		bad[1].UserID = 3
		if err := Verify(plan, goodRanks, bad); err == nil {
			t.Fatal("board disagreement not detected")
		}
	})
}
