package pattern

import "github.com/cory-johannsen/bossai/internal/game/dice"

// Select filters candidates by usable, then draws one with probability proportional
// to weight over the filtered subset.
//
// Postcondition: returns false when no candidate passes the filter or the filtered
// weights sum to zero.
func Select[T any](candidates []T, weight func(T) float64, usable func(T) bool, src dice.Source) (T, bool) {
	filtered := Filter(candidates, usable)
	total := TotalWeight(filtered, weight)
	if total <= 0 {
		var zero T
		return zero, false
	}
	return Pick(filtered, weight, src.Float64()*total)
}

// Filter returns the candidates for which usable holds, preserving order.
// A nil usable keeps every candidate.
func Filter[T any](candidates []T, usable func(T) bool) []T {
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if usable == nil || usable(c) {
			out = append(out, c)
		}
	}
	return out
}

// TotalWeight sums the non-negative weights of items.
func TotalWeight[T any](items []T, weight func(T) float64) float64 {
	total := 0.0
	for _, it := range items {
		if w := weight(it); w > 0 {
			total += w
		}
	}
	return total
}

// Pick walks items accumulating weight and returns the first whose cumulative
// weight strictly exceeds draw.
//
// Precondition: draw is in [0, TotalWeight(items, weight)).
// Postcondition: weights [1,1,2] with draw 1.5 pick the second item. A draw that
// rounding pushed to the total picks the last positively weighted item.
func Pick[T any](items []T, weight func(T) float64, draw float64) (T, bool) {
	var (
		cumulative float64
		last       T
		found      bool
	)
	for _, it := range items {
		w := weight(it)
		if w <= 0 {
			continue
		}
		cumulative += w
		last, found = it, true
		if cumulative > draw {
			return it, true
		}
	}
	return last, found
}

// DefinitionWeight is the weight accessor for Definitions.
func DefinitionWeight(d *Definition) float64 { return d.Weight }
