// Package progress contains the per-player completion state passed between
// layers.
package progress

import "github.com/psibladdd/dobro-school/internal/domain/catalog"

// Vector is the completion state of a single player across all task slots,
// one bit per slot in catalog order. The zero value means nothing completed.
// Vectors are values; mutation happens by replacing the whole vector, which
// keeps read paths free of aliasing.
type Vector uint32

// mask covers exactly the catalog's slots. Bits above it are never set.
const mask = (1 << catalog.Size) - 1

// Has reports whether the slot at index is completed.
func (v Vector) Has(index int) bool {
	return index >= 0 && index < catalog.Size && v&(1<<uint(index)) != 0
}

// With returns a copy of v with the slot at index completed. Completing an
// already-completed slot returns v unchanged; flags are monotone and no
// operation resets one.
func (v Vector) With(index int) Vector {
	if index < 0 || index >= catalog.Size {
		return v
	}
	return (v | 1<<uint(index)) & mask
}

// Done returns the completed task codes in catalog order.
func (v Vector) Done() []string {
	var done []string
	for i := 0; i < catalog.Size; i++ {
		if v.Has(i) {
			done = append(done, catalog.Code(i))
		}
	}
	return done
}

// PlayerRecord is the durable ground truth for one player.
type PlayerRecord struct {
	ID     int64
	Vector Vector
	// LastUpdate is the time of the most recent completion in milliseconds
	// since epoch; 0 means the player has never completed anything.
	LastUpdate int64
}
