package progress

import (
	"testing"

	"github.com/psibladdd/dobro-school/internal/domain/catalog"
)

func TestVector_WithAndHas(t *testing.T) {
	var v Vector
	if v.Has(0) {
		t.Error("zero vector should have nothing completed")
	}

	v = v.With(0)
	if !v.Has(0) {
		t.Error("expected slot 0 completed")
	}
	if v.Has(1) {
		t.Error("slot 1 should be untouched")
	}

	// Completing a completed slot is a no-op on the vector.
	again := v.With(0)
	if again != v {
		t.Errorf("repeat completion changed vector: %b != %b", again, v)
	}
}

func TestVector_OutOfRangeIgnored(t *testing.T) {
	var v Vector
	if got := v.With(-1); got != v {
		t.Errorf("With(-1) changed vector: %b", got)
	}
	if got := v.With(catalog.Size); got != v {
		t.Errorf("With(Size) changed vector: %b", got)
	}
	if v.Has(-1) || v.Has(catalog.Size) {
		t.Error("out-of-range Has must report false")
	}
}

func TestVector_Done(t *testing.T) {
	var v Vector
	if done := v.Done(); len(done) != 0 {
		t.Errorf("zero vector done = %v", done)
	}

	i11, _ := catalog.Index("11")
	i35, _ := catalog.Index("35")
	i55, _ := catalog.Index("55")
	v = v.With(i55).With(i11).With(i35)

	done := v.Done()
	if len(done) != 3 {
		t.Fatalf("expected 3 done tasks, got %v", done)
	}
	// Catalog order, not completion order.
	if done[0] != "11" || done[1] != "35" || done[2] != "55" {
		t.Errorf("done not in catalog order: %v", done)
	}
}

func TestVector_AllSlots(t *testing.T) {
	var v Vector
	for i := 0; i < catalog.Size; i++ {
		v = v.With(i)
	}
	if len(v.Done()) != catalog.Size {
		t.Errorf("expected all %d slots done, got %d", catalog.Size, len(v.Done()))
	}
}
