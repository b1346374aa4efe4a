package engine

import "math"

// ============================================================================
// COMBINATIONS — Cartesian Product of Grouping Dimension Values
// ============================================================================
// Values come from the rows actually present, in first-seen order. The
// product is complete: combinations that never co-occur in the data are
// still produced, and aggregate to zero.
// ============================================================================

// CartesianProduct returns every combination of distinct values of dims.
// The first dimension varies slowest. Zero dims yields one empty combination.
func CartesianProduct(view FactView, dims []string) [][]string {
	combos, _ := CartesianProductLimit(view, dims, 0)
	return combos
}

// CartesianProductLimit is CartesianProduct that stops generating after
// limit combinations and reports whether any were dropped. A limit of zero
// or less means no limit.
func CartesianProductLimit(view FactView, dims []string, limit int) ([][]string, bool) {
	if len(dims) == 0 {
		return [][]string{{}}, false
	}

	values := make([][]string, len(dims))
	for d, dim := range dims {
		values[d] = UniqueValues(view, dim)
	}
	total := productSize(values)
	if total == 0 {
		return [][]string{}, false
	}

	n := total
	truncated := false
	if limit > 0 && total > limit {
		n = limit
		truncated = true
	}

	// Odometer over value indices, last dimension fastest.
	combos := make([][]string, 0, min(n, maxPrealloc))
	idx := make([]int, len(dims))
	for len(combos) < n {
		combo := make([]string, len(dims))
		for d := range dims {
			combo[d] = values[d][idx[d]]
		}
		combos = append(combos, combo)

		for d := len(dims) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < len(values[d]) {
				break
			}
			idx[d] = 0
		}
	}
	return combos, truncated
}

// CombinationCount returns the size of the full product without building it.
// It saturates at math.MaxInt.
func CombinationCount(view FactView, dims []string) int {
	values := make([][]string, len(dims))
	for d, dim := range dims {
		values[d] = UniqueValues(view, dim)
	}
	return productSize(values)
}

// maxPrealloc bounds the capacity reserved up front for an unlimited product.
const maxPrealloc = 1 << 12

// productSize multiplies the value counts, saturating at math.MaxInt. Any
// empty dimension makes the product empty.
func productSize(values [][]string) int {
	for _, v := range values {
		if len(v) == 0 {
			return 0
		}
	}
	total := 1
	for _, v := range values {
		if total > math.MaxInt/len(v) {
			return math.MaxInt
		}
		total *= len(v)
	}
	return total
}

// UniqueValues returns distinct non-empty values for a dimension, in
// first-seen order.
func UniqueValues(view FactView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := view.Dimension(i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}
