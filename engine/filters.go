package engine

import (
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// FILTERS — Date, Hour and Dimension Filtering via FactView
// ============================================================================
// Single pass: each row is checked against the date range, then the hour
// filter, then every dimension filter. A row survives only if all pass.
// Returns a SubView (index list into parent) without copying data.
// ============================================================================

// ApplyFilters returns a view of rows inside dateRange that pass the hour
// filter and every dimension filter. Filters with no values are skipped.
func ApplyFilters(view FactView, dateRange timeframe.DateRange, hours HourFilter, filters []QueryFilter) FactView {
	dims := compileFilters(filters)

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !dateRange.Contains(view.Date(i)) {
			continue
		}
		if !IsHourSelected(hours, view.Hour(i)) {
			continue
		}
		if !dims.match(view, i) {
			continue
		}
		indices = append(indices, i)
	}

	return newSubView(view, indices)
}

// IsHourSelected reports whether hour passes the filter.
//
// The two modes treat an empty selection differently: range mode with no
// ranges lets every hour through, select mode with no hours lets none.
func IsHourSelected(f HourFilter, hour int) bool {
	if !f.Enabled {
		return true
	}
	switch f.Mode {
	case HourModeSelect:
		for _, h := range f.SelectedHours {
			if h == hour {
				return true
			}
		}
		return false
	default:
		if len(f.Ranges) == 0 {
			return true
		}
		for _, r := range f.Ranges {
			if hour >= r.Start && hour <= r.End {
				return true
			}
		}
		return false
	}
}

type compiledFilter struct {
	dimension string
	exclude   bool
	values    map[string]bool
}

type compiledFilters []compiledFilter

func compileFilters(filters []QueryFilter) compiledFilters {
	out := make(compiledFilters, 0, len(filters))
	for _, f := range filters {
		if len(f.Values) == 0 {
			continue
		}
		set := make(map[string]bool, len(f.Values))
		for _, v := range f.Values {
			set[v] = true
		}
		out = append(out, compiledFilter{
			dimension: f.DimensionID,
			exclude:   f.Operator == OperatorNotIn,
			values:    set,
		})
	}
	return out
}

func (cf compiledFilters) match(view FactView, i int) bool {
	for _, f := range cf {
		if f.values[view.Dimension(i, f.dimension)] == f.exclude {
			return false
		}
	}
	return true
}
