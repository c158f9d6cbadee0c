// Package catalog defines the fixed task catalog: five categories of five
// tasks each, addressed by two-digit codes "11".."55". The catalog is
// immutable at runtime; every slot a player can complete exists here.
package catalog

import "fmt"

// Catalog dimensions.
const (
	Categories       = 5
	TasksPerCategory = 5
	Size             = Categories * TasksPerCategory
)

// Index maps a task code to its slot position 0..Size-1. The code format is
// <category 1-5><ordinal 1-5>. Anything outside the catalog is rejected with
// ErrUnknownSlot, never silently ignored.
func Index(code string) (int, error) {
	if len(code) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSlot, code)
	}
	category := int(code[0] - '0')
	ordinal := int(code[1] - '0')
	if category < 1 || category > Categories || ordinal < 1 || ordinal > TasksPerCategory {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSlot, code)
	}
	return (category-1)*TasksPerCategory + (ordinal - 1), nil
}

// Code returns the task code for a slot position. Panics on an out-of-range
// index; indices originate from Index or from iteration over Size.
func Code(index int) string {
	if index < 0 || index >= Size {
		panic(fmt.Sprintf("catalog: index %d out of range", index))
	}
	category := index/TasksPerCategory + 1
	ordinal := index%TasksPerCategory + 1
	return fmt.Sprintf("%d%d", category, ordinal)
}

// Codes returns all task codes in catalog order.
func Codes() []string {
	codes := make([]string, Size)
	for i := range codes {
		codes[i] = Code(i)
	}
	return codes
}
