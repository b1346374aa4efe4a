// Package timeframe holds the calendar arithmetic of the query engine:
// granularities, comparison types, inclusive date ranges, comparison
// windows and time bucket keys.
package timeframe

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the on-wire format of every date in a query and in fact rows.
const DateLayout = "2006-01-02"

// Granularity is the size of a time bucket.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Granularities lists the supported granularities from finest to coarsest.
var Granularities = []Granularity{GranularityHour, GranularityDay, GranularityWeek, GranularityMonth}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return true
	}
	return false
}

// GranularityName returns the display name used in summaries, e.g. "按日".
func GranularityName(g Granularity) string {
	switch g {
	case GranularityHour:
		return "按小时"
	case GranularityDay:
		return "按日"
	case GranularityWeek:
		return "按周"
	case GranularityMonth:
		return "按月"
	}
	return string(g)
}

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("start date is after end date")
)

// DateRange is an inclusive range of calendar days in YYYY-MM-DD form.
type DateRange struct {
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate" yaml:"endDate"`
}

// Validate checks both bounds parse and are ordered.
func (r DateRange) Validate() error {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.StartDate, r.EndDate)
	}
	return nil
}

// Contains compares lexicographically, which matches calendar order for
// YYYY-MM-DD strings. An empty bound is open.
func (r DateRange) Contains(date string) bool {
	if r.StartDate != "" && date < r.StartDate {
		return false
	}
	if r.EndDate != "" && date > r.EndDate {
		return false
	}
	return true
}

// Days returns the number of calendar days in the range, or 0 if it does not parse.
func (r DateRange) Days() int {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return 0
	}
	end, err := ParseDate(r.EndDate)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func (r DateRange) String() string {
	if r.StartDate == r.EndDate {
		return r.StartDate
	}
	return r.StartDate + " 至 " + r.EndDate
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddMonths moves t by n calendar months, clamping the day to the last day
// of the target month (Mar 31 minus one month is Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// StartOfWeek truncates t to the Monday of its week.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
}
