package engine

import (
	"math"
	"sort"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// AGGREGATORS — Time Bucketing, Comparison Alignment, SUM
// ============================================================================
// Pipeline per query:
//   1. Bucket main and comparison rows by granularity (sorted by bucket key)
//   2. Pair each main bucket with a comparison bucket
//        hour:           same hour of day
//        day/week/month: same ordinal position after sorting
//   3. For each combination × metric, SUM matching rows into the series key
//   4. Attach _comp and _rate when the paired comparison bucket exists
//
// Every metric is summed whatever its catalog aggregation kind; the series
// key layout is shared by chart and table projection.
// ============================================================================

// Aggregate produces one AggregatedRow per main bucket.
func Aggregate(
	main FactView,
	comparison FactView,
	granularity timeframe.Granularity,
	dims []string,
	combinations [][]string,
	metrics []string,
	comparisonActive bool,
) []AggregatedRow {
	combinations = capCombinations(combinations)

	mainBuckets := bucketize(main, granularity)
	if len(mainBuckets) == 0 {
		return []AggregatedRow{}
	}

	var compBuckets []rowBucket
	if comparisonActive && comparison != nil {
		compBuckets = bucketize(comparison, granularity)
	}
	pair := pairBuckets(mainBuckets, compBuckets, granularity)

	rows := make([]AggregatedRow, 0, len(mainBuckets))
	for b, mb := range mainBuckets {
		row := AggregatedRow{
			BucketKey:   mb.Key,
			BucketLabel: mb.Label,
			Values:      make(map[string]float64, len(combinations)*len(metrics)*3),
		}

		var cb *rowBucket
		if j := pair[b]; j >= 0 {
			cb = &compBuckets[j]
			row.ComparisonBucketKey = cb.Key
			row.ComparisonBucketLabel = cb.Label
		}

		for _, combo := range combinations {
			mainSums := sumMatching(main, mb.rows, dims, combo, metrics)
			var compSums []float64
			if cb != nil {
				compSums = sumMatching(comparison, cb.rows, dims, combo, metrics)
			}

			for m, metric := range metrics {
				key := SeriesKey(combo, metric)
				row.Values[key] = mainSums[m]
				if cb != nil {
					row.Values[key+ComparisonSuffix] = compSums[m]
					row.Values[key+RateSuffix] = ComparisonRate(mainSums[m], compSums[m])
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// SumMetric sums a named metric across a view.
func SumMetric(view FactView, metric string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		total += view.Metric(i, metric)
	}
	return finite(total)
}

// ============================================================================
// BUCKETING
// ============================================================================

type rowBucket struct {
	timeframe.Bucket
	rows []int
}

// bucketize groups row indices by time bucket, sorted by bucket key. Rows
// whose date does not parse are skipped.
func bucketize(view FactView, granularity timeframe.Granularity) []rowBucket {
	index := make(map[string]int)
	var buckets []rowBucket

	for i := 0; i < view.Len(); i++ {
		var b timeframe.Bucket
		if granularity == timeframe.GranularityHour {
			b = timeframe.HourBucket(view.Hour(i))
		} else {
			var err error
			b, err = timeframe.BucketFor(view.Date(i), granularity)
			if err != nil {
				continue
			}
		}

		pos, ok := index[b.Key]
		if !ok {
			pos = len(buckets)
			index[b.Key] = pos
			buckets = append(buckets, rowBucket{Bucket: b})
		}
		buckets[pos].rows = append(buckets[pos].rows, i)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

// pairBuckets maps each main bucket index to a comparison bucket index, or -1.
func pairBuckets(mainBuckets, compBuckets []rowBucket, granularity timeframe.Granularity) []int {
	pair := make([]int, len(mainBuckets))
	if granularity == timeframe.GranularityHour {
		byKey := make(map[string]int, len(compBuckets))
		for j, cb := range compBuckets {
			byKey[cb.Key] = j
		}
		for i, mb := range mainBuckets {
			if j, ok := byKey[mb.Key]; ok {
				pair[i] = j
			} else {
				pair[i] = -1
			}
		}
		return pair
	}

	for i := range mainBuckets {
		if i < len(compBuckets) {
			pair[i] = i
		} else {
			pair[i] = -1
		}
	}
	return pair
}

// ============================================================================
// SUMMING
// ============================================================================

// sumMatching sums each metric over the rows whose dimension values equal
// combo position by position.
func sumMatching(view FactView, rows []int, dims []string, combo []string, metrics []string) []float64 {
	sums := make([]float64, len(metrics))
	for _, i := range rows {
		if !matchesCombination(view, i, dims, combo) {
			continue
		}
		for m, metric := range metrics {
			sums[m] += view.Metric(i, metric)
		}
	}
	for m := range sums {
		sums[m] = finite(sums[m])
	}
	return sums
}

func matchesCombination(view FactView, i int, dims []string, combo []string) bool {
	for d, value := range combo {
		if d >= len(dims) || view.Dimension(i, dims[d]) != value {
			return false
		}
	}
	return true
}

func capCombinations(combinations [][]string) [][]string {
	if len(combinations) == 0 {
		return [][]string{{}}
	}
	if len(combinations) > MaxCombinations {
		return combinations[:MaxCombinations]
	}
	return combinations
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
