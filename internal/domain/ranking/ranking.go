// Package ranking defines the leaderboard's total order and rank
// assignment.
//
// Ordering: score DESC, then last_update ASC (the player who reached the
// score earlier ranks higher), then player id ASC. The third key makes the
// order a strict total order, so results are reproducible even when two
// players share a score and a timestamp (e.g. both still at the sentinel 0).
package ranking

import "sort"

// Standing is one player's position input: the derived score plus the
// tie-break timestamp.
type Standing struct {
	PlayerID   int64
	Score      int
	LastUpdate int64
}

// Less reports whether a ranks strictly earlier than b.
func Less(a, b Standing) bool {
	if a.Score != b.Score {
		return a.Score > b.Score // higher score ranks earlier
	}
	if a.LastUpdate != b.LastUpdate {
		return a.LastUpdate < b.LastUpdate // earlier completion wins ties
	}
	return a.PlayerID < b.PlayerID
}

// Sort orders standings in place by the leaderboard's total order.
func Sort(standings []Standing) {
	sort.Slice(standings, func(i, j int) bool {
		return Less(standings[i], standings[j])
	})
}

// Ranks returns the dense 1-based rank for each sorted standing. Ranks are
// unique 1..N with no gaps: the total order already breaks every tie, so no
// two players ever share a rank.
func Ranks(sorted []Standing) []int {
	ranks := make([]int, len(sorted))
	for i := range sorted {
		ranks[i] = i + 1
	}
	return ranks
}

// CheckDense verifies that ranks form the exact sequence 1..len(ranks).
// Returns false on a duplicate, a gap, or an out-of-order rank; callers
// treat that as a corrupt cache and force a rebuild.
func CheckDense(ranks []int) bool {
	for i, r := range ranks {
		if r != i+1 {
			return false
		}
	}
	return true
}
