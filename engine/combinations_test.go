package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// COMBINATION TESTS
// ============================================================================

func TestCartesianProductZeroDims(t *testing.T) {
	view := NewSliceView([]FactRow{cityFact("2025-01-01", "A", 1)})
	assert.Equal(t, [][]string{{}}, CartesianProduct(view, nil))
}

func TestCartesianProductCompleteness(t *testing.T) {
	rows := []FactRow{
		fact("2025-01-01", 0, map[string]string{"city": "A", "supplier": "X"}, nil),
		fact("2025-01-01", 0, map[string]string{"city": "B", "supplier": "Y"}, nil),
		fact("2025-01-01", 0, map[string]string{"city": "C", "supplier": "X"}, nil),
	}
	view := NewSliceView(rows)

	combos := CartesianProduct(view, []string{"city", "supplier"})
	assert.Equal(t, [][]string{
		{"A", "X"}, {"A", "Y"},
		{"B", "X"}, {"B", "Y"},
		{"C", "X"}, {"C", "Y"},
	}, combos)
	assert.Equal(t, 6, CombinationCount(view, []string{"city", "supplier"}))
}

func TestCartesianProductStableOrder(t *testing.T) {
	view := NewSliceView(gridFacts("2025-01-01", []string{"B", "A"}, []string{"Y", "X"}))
	first := CartesianProduct(view, []string{"city", "supplier"})
	second := CartesianProduct(view, []string{"city", "supplier"})

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"B", "Y"}, first[0])
}

func TestCartesianProductNoValues(t *testing.T) {
	view := NewSliceView(nil)
	combos, truncated := CartesianProductLimit(view, []string{"city"}, MaxCombinations)
	assert.Empty(t, combos)
	assert.False(t, truncated)
}

func TestCartesianProductLimit(t *testing.T) {
	cities := []string{"c1", "c2", "c3", "c4", "c5"}
	suppliers := []string{"s1", "s2", "s3", "s4", "s5"}
	view := NewSliceView(gridFacts("2025-01-01", cities, suppliers))

	full := CartesianProduct(view, []string{"city", "supplier"})
	capped, truncated := CartesianProductLimit(view, []string{"city", "supplier"}, MaxCombinations)

	assert.Len(t, full, 25)
	assert.Len(t, capped, 20)
	assert.True(t, truncated)
	assert.Equal(t, full[:20], capped)

	exact, truncated := CartesianProductLimit(view, []string{"city"}, 5)
	assert.Len(t, exact, 5)
	assert.False(t, truncated)
}

func TestUniqueValuesSkipsEmpty(t *testing.T) {
	view := NewSliceView([]FactRow{
		cityFact("2025-01-01", "A", 1),
		cityFact("2025-01-01", "", 1),
		cityFact("2025-01-01", "A", 1),
		cityFact("2025-01-01", "B", 1),
	})
	assert.Equal(t, []string{"A", "B"}, UniqueValues(view, "city"))
}

// wideFacts returns n rows over dims d0..d{dims-1}; row i carries value vi in
// every dimension, so each dimension has n distinct values.
func wideFacts(dims, n int) ([]FactRow, []string) {
	keys := make([]string, dims)
	for d := range keys {
		keys[d] = fmt.Sprintf("d%d", d)
	}
	rows := make([]FactRow, n)
	for i := range rows {
		values := make(map[string]string, dims)
		for _, k := range keys {
			values[k] = fmt.Sprintf("v%d", i)
		}
		rows[i] = fact("2025-01-01", 0, values, map[string]float64{"call_qty": 1})
	}
	return rows, keys
}

func TestCartesianProductLimitHugeProduct(t *testing.T) {
	rows, dims := wideFacts(16, 16)
	view := NewSliceView(rows)

	assert.Equal(t, math.MaxInt, CombinationCount(view, dims))

	combos, truncated := CartesianProductLimit(view, dims, MaxCombinations)
	assert.True(t, truncated)
	require.Len(t, combos, MaxCombinations)
	assert.Equal(t, "v0", combos[0][0])
	assert.Equal(t, "v1", combos[1][15])
}

func TestCombinationCountSaturates(t *testing.T) {
	rows, dims := wideFacts(7, 1000)
	assert.Equal(t, math.MaxInt, CombinationCount(NewSliceView(rows), dims))

	rows, dims = wideFacts(3, 4)
	assert.Equal(t, 64, CombinationCount(NewSliceView(rows), dims))
	assert.Equal(t, 1, CombinationCount(NewSliceView(rows), nil))
}
