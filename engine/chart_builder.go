package engine

import (
	"strings"
)

// ============================================================================
// CHART BUILDER — Series Descriptors and ChartConfig
// ============================================================================
// Series order is combinations outer, metrics inner, matching the order
// Aggregate writes series keys. Colour follows the combination, so every
// metric of one combination shares a colour.
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// TotalLabel names the series of an ungrouped query.
const TotalLabel = "合计"

// ComboSeparator joins dimension values in series names.
const ComboSeparator = " · "

// BuildSeries describes one series per combination × metric, truncated to
// the series cap. The bool reports whether any series were dropped.
func BuildSeries(combinations [][]string, metrics []string, md Metadata, opts ...Option) ([]SeriesDescriptor, bool) {
	cfg := applyOptions(opts)
	if len(combinations) == 0 {
		combinations = [][]string{{}}
	}

	total := len(combinations) * len(metrics)
	n := total
	if n > cfg.MaxSeries {
		n = cfg.MaxSeries
	}

	series := make([]SeriesDescriptor, 0, n)
	for c, combo := range combinations {
		for m, metric := range metrics {
			if len(series) == n {
				return series, total > n
			}
			series = append(series, SeriesDescriptor{
				Key:         SeriesKey(combo, metric),
				Name:        seriesName(combo, metric, len(metrics), md),
				Color:       cfg.Palette[c%len(cfg.Palette)],
				MetricID:    metric,
				Combination: combo,
				ComboIndex:  c,
				MetricIndex: m,
			})
		}
	}
	return series, total > n
}

func seriesName(combo []string, metric string, metricCount int, md Metadata) string {
	label := TotalLabel
	if len(combo) > 0 {
		label = strings.Join(combo, ComboSeparator)
	}
	if metricCount > 1 {
		return label + " - " + metricName(md, metric)
	}
	return label
}

// BuildChart turns aggregated rows into a ChartConfig, one ChartSeries per
// descriptor. Comparison points are attached when the rows carry them.
func BuildChart(rows []AggregatedRow, series []SeriesDescriptor, granularity string, md Metadata, opts ...Option) *ChartConfig {
	if len(rows) == 0 || len(series) == 0 {
		return nil
	}
	cfg := applyOptions(opts)

	chart := &ChartConfig{
		ChartType:  cfg.ChartType,
		XAxis:      granularity,
		ShowLegend: len(series) > 1,
		ShowGrid:   cfg.ChartType != "pie",
	}

	metricSeen := make(map[string]bool)
	var yAxis []string
	for _, s := range series {
		if !metricSeen[s.MetricID] {
			metricSeen[s.MetricID] = true
			yAxis = append(yAxis, metricName(md, s.MetricID))
		}
	}
	chart.YAxis = strings.Join(yAxis, " / ")
	chart.Title = chart.YAxis

	chart.Series = make([]ChartSeries, 0, len(series))
	chart.Colors = make([]string, 0, len(series))
	for _, s := range series {
		cs := ChartSeries{
			Key:   s.Key,
			Name:  s.Name,
			Color: s.Color,
			Data:  make([]ChartPoint, 0, len(rows)),
		}
		for _, row := range rows {
			v, _ := row.Value(s.Key)
			cs.Data = append(cs.Data, ChartPoint{Label: row.BucketLabel, Value: RoundTo2(v)})
			if comp, ok := row.Value(s.Key + ComparisonSuffix); ok {
				cs.Comparison = append(cs.Comparison, ChartPoint{Label: row.BucketLabel, Value: RoundTo2(comp)})
			}
		}
		chart.Series = append(chart.Series, cs)
		chart.Colors = append(chart.Colors, s.Color)
	}
	return chart
}
