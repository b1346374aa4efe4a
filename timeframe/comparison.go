package timeframe

import (
	"strings"
	"time"
)

// ComparisonType selects the window a query is compared against.
type ComparisonType string

const (
	ComparisonNone   ComparisonType = "none"
	ComparisonPeriod ComparisonType = "period"
	ComparisonDay    ComparisonType = "day"
	ComparisonWeek   ComparisonType = "week"
	ComparisonMonth  ComparisonType = "month"
)

// Active reports whether a comparison window should be computed at all.
func (t ComparisonType) Active() bool {
	return t != "" && t != ComparisonNone
}

// ValidComparisonTypes lists the comparison types offered for a granularity.
// A comparison is only meaningful at or above the granularity it compares.
func ValidComparisonTypes(g Granularity) []ComparisonType {
	switch g {
	case GranularityHour:
		return []ComparisonType{ComparisonPeriod, ComparisonDay, ComparisonWeek, ComparisonMonth}
	case GranularityDay:
		return []ComparisonType{ComparisonPeriod, ComparisonWeek, ComparisonMonth}
	case GranularityWeek:
		return []ComparisonType{ComparisonPeriod, ComparisonMonth}
	case GranularityMonth:
		return []ComparisonType{ComparisonPeriod}
	}
	return nil
}

// IsValidComparison reports whether t is offered for g. ComparisonNone is always valid.
func IsValidComparison(g Granularity, t ComparisonType) bool {
	if !t.Active() {
		return true
	}
	for _, v := range ValidComparisonTypes(g) {
		if v == t {
			return true
		}
	}
	return false
}

var periodLabels = map[Granularity]string{
	GranularityHour:  "时环比 (上一小时)",
	GranularityDay:   "日环比 (昨日)",
	GranularityWeek:  "周环比 (上周)",
	GranularityMonth: "月环比 (上月)",
}

// ComparisonLabel returns the human label of a comparison, e.g. "日环比 (昨日)".
func ComparisonLabel(t ComparisonType, g Granularity) string {
	switch t {
	case "", ComparisonNone:
		return "无对比"
	case ComparisonPeriod:
		if label, ok := periodLabels[g]; ok {
			return label
		}
		return "环比 (上一周期)"
	case ComparisonDay:
		return "日环比 (昨日)"
	case ComparisonWeek:
		return "周同比 (上周同期)"
	case ComparisonMonth:
		return "月同比 (上月同期)"
	}
	return string(t)
}

// StripQualifier drops a trailing parenthetical: "日环比 (昨日)" becomes "日环比".
func StripQualifier(label string) string {
	for _, open := range []string{"(", "（"} {
		if i := strings.Index(label, open); i >= 0 {
			label = label[:i]
		}
	}
	return strings.TrimSpace(label)
}

// ComparisonRange derives the comparison window for r.
//
// ComparisonPeriod shifts back one unit of g (one hour, day, week or
// calendar month); for any other granularity both bounds move back by the
// range's own duration. ComparisonDay, ComparisonWeek and ComparisonMonth
// shift by exactly one day, week or calendar month regardless of g.
// Unrecognised types, and bounds that do not parse, return r unchanged.
func ComparisonRange(r DateRange, g Granularity, t ComparisonType) DateRange {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return r
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return r
	}

	var shift func(time.Time) time.Time
	switch t {
	case ComparisonPeriod:
		switch g {
		case GranularityHour:
			shift = func(d time.Time) time.Time { return d.Add(-time.Hour) }
		case GranularityDay:
			shift = func(d time.Time) time.Time { return d.AddDate(0, 0, -1) }
		case GranularityWeek:
			shift = func(d time.Time) time.Time { return d.AddDate(0, 0, -7) }
		case GranularityMonth:
			shift = func(d time.Time) time.Time { return AddMonths(d, -1) }
		default:
			span := end.Sub(start)
			shift = func(d time.Time) time.Time { return d.Add(-span) }
		}
	case ComparisonDay:
		shift = func(d time.Time) time.Time { return d.AddDate(0, 0, -1) }
	case ComparisonWeek:
		shift = func(d time.Time) time.Time { return d.AddDate(0, 0, -7) }
	case ComparisonMonth:
		shift = func(d time.Time) time.Time { return AddMonths(d, -1) }
	default:
		return r
	}

	return DateRange{
		StartDate: FormatDate(shift(start)),
		EndDate:   FormatDate(shift(end)),
	}
}
