// Package ordering maintains contiguous, 1-based, gap-free orderings.
//
// The engine holds no state. Callers load the current order (a slice of ids,
// first element = position 1), apply Append, InsertAt, Remove or Reorder, and
// persist the result with PersistOrder, which always rewrites every position.
// Partial updates cannot keep positions contiguous under concurrent edits, so
// the write set is never a diff.
package ordering

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// ErrUnknownID is returned by Reorder when a move names an id that is not in
// the order.
var ErrUnknownID = errors.New("ordering: unknown id")

// Move relocates ID to the 1-based TargetPosition.
type Move[K comparable] struct {
	ID             K   `json:"id"`
	TargetPosition int `json:"targetPosition"`
}

// Write is one row of a full position rewrite.
type Write[K comparable] struct {
	ID        K
	Position  int
	UpdatedAt time.Time
	UpdatedBy string
}

// ClampIndex saturates a 0-based target into [0, length]. Out-of-range
// targets become "first" or "last" instead of failing.
func ClampIndex(requested, length int) int {
	return max(0, min(requested, length))
}

// Append moves id to the end of order. An id already present is removed
// first, so the result never holds duplicates.
func Append[K comparable](order []K, id K) []K {
	out := Remove(order, id)
	return append(out, id)
}

// InsertAt places id at the 0-based index, clamped to the list bounds. An id
// already present is removed first, so reinsertion is idempotent.
func InsertAt[K comparable](order []K, id K, index int) []K {
	out := Remove(order, id)
	return slices.Insert(out, ClampIndex(index, len(out)), id)
}

// Remove returns order without id. It never renumbers; positions are derived
// from slice indexes at persist time.
func Remove[K comparable](order []K, id K) []K {
	out := make([]K, 0, len(order))
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// MoveTo relocates a single id to a 1-based target position.
func MoveTo[K comparable](order []K, id K, targetPosition int) ([]K, error) {
	return Reorder(order, []Move[K]{{ID: id, TargetPosition: targetPosition}})
}

// Reorder applies moves sorted by target position ascending. Moves with equal
// targets keep their original relative order. Each move is applied with
// InsertAt against the evolving order so two moves never fight over a slot.
func Reorder[K comparable](order []K, moves []Move[K]) ([]K, error) {
	for _, m := range moves {
		if !slices.Contains(order, m.ID) {
			return nil, fmt.Errorf("%w: %v", ErrUnknownID, m.ID)
		}
	}
	sorted := slices.Clone(moves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TargetPosition < sorted[j].TargetPosition
	})
	out := slices.Clone(order)
	for _, m := range sorted {
		out = InsertAt(out, m.ID, m.TargetPosition-1)
	}
	return out, nil
}

// PersistOrder produces the full rewrite for order: one write per id with
// Position = index + 1.
func PersistOrder[K comparable](order []K, at time.Time, actor string) []Write[K] {
	writes := make([]Write[K], len(order))
	for i, id := range order {
		writes[i] = Write[K]{ID: id, Position: i + 1, UpdatedAt: at, UpdatedBy: actor}
	}
	return writes
}

// Contiguous reports whether positions are exactly 1..N in order.
func Contiguous(positions []int) bool {
	for i, p := range positions {
		if p != i+1 {
			return false
		}
	}
	return true
}
