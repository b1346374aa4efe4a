package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// FILTER TESTS
// ============================================================================

func hourlyFacts() []FactRow {
	var rows []FactRow
	for _, date := range []string{"2025-01-07", "2025-01-08", "2025-01-09"} {
		for h := 0; h < 24; h++ {
			city := "北京"
			if h%2 == 1 {
				city = "上海"
			}
			rows = append(rows, fact(date, h,
				map[string]string{"city": city, "supplier": "S1"},
				map[string]float64{"call_qty": 1}))
		}
	}
	return rows
}

func TestApplyFiltersDateRange(t *testing.T) {
	view := NewSliceView(hourlyFacts())
	got := ApplyFilters(view, timeframe.DateRange{StartDate: "2025-01-08", EndDate: "2025-01-09"}, HourFilter{}, nil)

	assert.Equal(t, 48, got.Len())
	for i := 0; i < got.Len(); i++ {
		assert.NotEqual(t, "2025-01-07", got.Date(i))
	}
	assert.Equal(t, 72, view.Len(), "source view must be untouched")
}

func TestIsHourSelected(t *testing.T) {
	testCases := []struct {
		name     string
		filter   HourFilter
		hour     int
		expected bool
	}{
		{"disabled passes everything", HourFilter{Enabled: false, Mode: HourModeSelect}, 3, true},
		{"range mode with no ranges passes", HourFilter{Enabled: true, Mode: HourModeRange}, 3, true},
		{"select mode with no hours rejects", HourFilter{Enabled: true, Mode: HourModeSelect}, 3, false},
		{"inside range", HourFilter{Enabled: true, Mode: HourModeRange, Ranges: []HourRange{{Start: 9, End: 12}}}, 12, true},
		{"outside range", HourFilter{Enabled: true, Mode: HourModeRange, Ranges: []HourRange{{Start: 9, End: 12}}}, 13, false},
		{"second range", HourFilter{Enabled: true, Mode: HourModeRange, Ranges: []HourRange{{Start: 9, End: 12}, {Start: 18, End: 20}}}, 19, true},
		{"selected hour", HourFilter{Enabled: true, Mode: HourModeSelect, SelectedHours: []int{8, 20}}, 20, true},
		{"unselected hour", HourFilter{Enabled: true, Mode: HourModeSelect, SelectedHours: []int{8, 20}}, 9, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsHourSelected(tc.filter, tc.hour))
		})
	}
}

func TestApplyFiltersHourAsymmetry(t *testing.T) {
	view := NewSliceView(hourlyFacts())
	dr := timeframe.DateRange{StartDate: "2025-01-08", EndDate: "2025-01-08"}

	rangeMode := ApplyFilters(view, dr, HourFilter{Enabled: true, Mode: HourModeRange}, nil)
	selectMode := ApplyFilters(view, dr, HourFilter{Enabled: true, Mode: HourModeSelect}, nil)

	assert.Equal(t, 24, rangeMode.Len())
	assert.Equal(t, 0, selectMode.Len())
}

func TestApplyFiltersDimensions(t *testing.T) {
	view := NewSliceView(hourlyFacts())
	dr := timeframe.DateRange{StartDate: "2025-01-08", EndDate: "2025-01-08"}

	in := ApplyFilters(view, dr, HourFilter{}, []QueryFilter{
		{ID: "f1", DimensionID: "city", Operator: OperatorIn, Values: []string{"北京"}},
	})
	assert.Equal(t, 12, in.Len())
	for i := 0; i < in.Len(); i++ {
		assert.Equal(t, "北京", in.Dimension(i, "city"))
	}

	notIn := ApplyFilters(view, dr, HourFilter{}, []QueryFilter{
		{ID: "f1", DimensionID: "city", Operator: OperatorNotIn, Values: []string{"北京"}},
	})
	assert.Equal(t, 12, notIn.Len())
	for i := 0; i < notIn.Len(); i++ {
		assert.Equal(t, "上海", notIn.Dimension(i, "city"))
	}

	both := ApplyFilters(view, dr, HourFilter{}, []QueryFilter{
		{ID: "f1", DimensionID: "city", Operator: OperatorIn, Values: []string{"北京"}},
		{ID: "f2", DimensionID: "city", Operator: OperatorNotIn, Values: []string{"北京"}},
	})
	assert.Equal(t, 0, both.Len(), "filters are AND-composed")

	absent := ApplyFilters(view, dr, HourFilter{}, []QueryFilter{
		{ID: "f1", DimensionID: "channel", Operator: OperatorIn, Values: []string{"app"}},
	})
	assert.Equal(t, 0, absent.Len())

	empty := ApplyFilters(view, dr, HourFilter{}, []QueryFilter{
		{ID: "f1", DimensionID: "city", Operator: OperatorIn},
	})
	assert.Equal(t, 24, empty.Len(), "a filter without values is skipped")
}

func TestApplyFiltersMonotonic(t *testing.T) {
	view := NewSliceView(hourlyFacts())
	dr := timeframe.DateRange{StartDate: "2025-01-07", EndDate: "2025-01-09"}

	filters := []QueryFilter{}
	hours := HourFilter{}
	prev := ApplyFilters(view, dr, hours, filters).Len()

	steps := []func(){
		func() { hours = HourFilter{Enabled: true, Mode: HourModeRange, Ranges: []HourRange{{Start: 6, End: 20}}} },
		func() {
			filters = append(filters, QueryFilter{ID: "a", DimensionID: "supplier", Operator: OperatorIn, Values: []string{"S1"}})
		},
		func() {
			filters = append(filters, QueryFilter{ID: "b", DimensionID: "city", Operator: OperatorNotIn, Values: []string{"上海"}})
		},
		func() { dr = timeframe.DateRange{StartDate: "2025-01-08", EndDate: "2025-01-08"} },
	}

	for _, step := range steps {
		step()
		n := ApplyFilters(view, dr, hours, filters).Len()
		assert.LessOrEqual(t, n, prev)
		prev = n
	}
}
