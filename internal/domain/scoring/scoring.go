// Package scoring defines the contract for deriving an aggregate score from
// a completion vector. It exists as an isolated unit purely so the scoring
// policy can change (weighted tasks, partial credit) without touching
// storage or ranking code.
package scoring

import (
	"math/bits"

	"github.com/psibladdd/dobro-school/internal/domain/progress"
)

// Deriver computes a score from a completion vector. Implementations must
// be pure: no state, no side effects.
type Deriver interface {
	Score(v progress.Vector) int
}

// EqualWeight implements Deriver with the equal-weight binary completion
// model: the score is the number of completed slots, 0..25. No partial
// credit, no weighting.
type EqualWeight struct{}

// NewEqualWeight creates the equal-weight deriver.
func NewEqualWeight() EqualWeight {
	return EqualWeight{}
}

// Score returns the population count of the completion vector.
func (EqualWeight) Score(v progress.Vector) int {
	return bits.OnesCount32(uint32(v))
}
