package timeframe

import (
	"fmt"
	"strconv"
)

// Bucket identifies one time bucket. Key sorts in calendar order; Label is
// what users see.
type Bucket struct {
	Key   string
	Label string
}

// BucketFor maps a fact date to its bucket at granularity g.
//
//	day:   key and label are the date itself
//	week:  key is the Monday week start (YYYY-MM-DD), label "MM-dd周"
//	month: key and label are "YYYY-MM"
//
// Hour buckets are keyed by the row's hour, not its date; see HourBucket.
func BucketFor(date string, g Granularity) (Bucket, error) {
	switch g {
	case GranularityDay:
		return Bucket{Key: date, Label: date}, nil
	case GranularityWeek:
		t, err := ParseDate(date)
		if err != nil {
			return Bucket{}, err
		}
		monday := StartOfWeek(t)
		return Bucket{Key: FormatDate(monday), Label: monday.Format("01-02") + "周"}, nil
	case GranularityMonth:
		t, err := ParseDate(date)
		if err != nil {
			return Bucket{}, err
		}
		key := t.Format("2006-01")
		return Bucket{Key: key, Label: key}, nil
	}
	return Bucket{}, fmt.Errorf("no date bucket for granularity %q", g)
}

// HourBucket returns the bucket of an hour of day. The key is zero padded
// so keys sort numerically.
func HourBucket(hour int) Bucket {
	return Bucket{Key: fmt.Sprintf("%02d", hour), Label: HourLabel(hour)}
}

// HourLabel renders an hour as "{h}点".
func HourLabel(hour int) string {
	return strconv.Itoa(hour) + "点"
}
