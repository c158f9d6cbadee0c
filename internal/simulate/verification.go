package simulate

import (
	"fmt"
	"sort"
)

// Verify cross-checks the retrieved ranks and leaderboard against the
// plan and against the ranking invariants: scores match the distinct
// slots completed, the board is sorted by score with ranks dense and
// unique, and the rank endpoint agrees with the board.
func Verify(plan *Plan, ranks []RankEntry, board []BoardEntry) error {
	if len(ranks) == 0 {
		return fmt.Errorf("no ranks to verify")
	}

	// Every player's score must equal the distinct slots the plan
	// completed for them, regardless of repeats.
	for _, entry := range ranks {
		want, ok := plan.ExpectedScore[entry.UserID]
		if !ok {
			return fmt.Errorf("rank endpoint returned unplanned player %d", entry.UserID)
		}
		if entry.Score != want {
			return fmt.Errorf("player %d: score %d, plan expects %d", entry.UserID, entry.Score, want)
		}
	}

	// Ranks across all players must be a permutation of 1..N.
	seen := make(map[int]int64, len(ranks))
	for _, entry := range ranks {
		if prev, dup := seen[entry.Rank]; dup {
			return fmt.Errorf("rank %d held by both player %d and player %d", entry.Rank, prev, entry.UserID)
		}
		seen[entry.Rank] = entry.UserID
	}
	sorted := make([]RankEntry, len(ranks))
	copy(sorted, ranks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	for i, entry := range sorted {
		if entry.Rank != i+1 {
			return fmt.Errorf("ranks not dense: expected %d at position %d, got %d", i+1, i, entry.Rank)
		}
	}

	// Better rank means not-worse score; equal scores order by earlier
	// last update.
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Score > prev.Score {
			return fmt.Errorf("rank %d (score %d) outscores rank %d (score %d)",
				cur.Rank, cur.Score, prev.Rank, prev.Score)
		}
		if cur.Score == prev.Score && prev.LastUpdate > cur.LastUpdate {
			return fmt.Errorf("tie between ranks %d and %d broken against the earlier finisher",
				prev.Rank, cur.Rank)
		}
	}

	// The board page must be a prefix of the full ranking.
	for i, row := range board {
		if row.Rank != i+1 {
			return fmt.Errorf("board position %d carries rank %d", i, row.Rank)
		}
		if i < len(sorted) {
			if row.UserID != sorted[i].UserID || row.Score != sorted[i].Score {
				return fmt.Errorf("board rank %d (player %d, score %d) disagrees with rank endpoint (player %d, score %d)",
					row.Rank, row.UserID, row.Score, sorted[i].UserID, sorted[i].Score)
			}
		}
	}

	return nil
}
