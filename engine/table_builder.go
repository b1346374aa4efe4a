package engine

import (
	"golang.org/x/text/message"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// TABLE BUILDER — Column Descriptors and Flattened Table Rows
// ============================================================================
// Column order: time column, one column per grouping dimension, then per
// metric its value column followed (when comparing) by the comparison value
// and the comparison rate. Table rows are one per bucket × combination and
// are keyed by column key, so renderers just read row[column.Key].
// ============================================================================

// TimeColumnKey is the key of the time column in table rows.
const TimeColumnKey = "bucketLabel"

// BuildColumns returns the ordered table columns of a query.
func BuildColumns(dims []string, metrics []string, comparison ComparisonConfig, granularity timeframe.Granularity, md Metadata) []ColumnDescriptor {
	columns := make([]ColumnDescriptor, 0, 1+len(dims)+len(metrics)*3)
	columns = append(columns, ColumnDescriptor{
		Key:    TimeColumnKey,
		Header: timeColumnHeader(granularity),
		Type:   ColumnDimension,
		Align:  "left",
	})

	for _, dim := range dims {
		if dim == TimeDimension {
			continue
		}
		columns = append(columns, ColumnDescriptor{
			Key:    dim,
			Header: dimensionName(md, dim),
			Type:   ColumnDimension,
			Align:  "left",
		})
	}

	compHeader := timeframe.StripQualifier(timeframe.ComparisonLabel(comparison.Type, comparison.EffectiveGranularity(granularity)))
	for _, metric := range metrics {
		name := metricName(md, metric)
		header := name
		if unit := metricUnit(md, metric); unit != "" {
			header += "(" + unit + ")"
		}
		columns = append(columns, ColumnDescriptor{Key: metric, Header: header, Type: ColumnMetric, Align: "right"})

		if comparison.Active() {
			columns = append(columns,
				ColumnDescriptor{Key: metric + ComparisonSuffix, Header: name + "(" + compHeader + ")", Type: ColumnComparison, Align: "right"},
				ColumnDescriptor{Key: metric + RateSuffix, Header: name + "(" + compHeader + "%)", Type: ColumnRate, Align: "right"},
			)
		}
	}
	return columns
}

func timeColumnHeader(g timeframe.Granularity) string {
	switch g {
	case timeframe.GranularityHour:
		return "小时"
	case timeframe.GranularityWeek:
		return "周"
	case timeframe.GranularityMonth:
		return "月份"
	default:
		return "日期"
	}
}

// BuildTableRows flattens aggregated rows into table rows. Comparison
// fields are present only where the aggregated row carries them.
func BuildTableRows(rows []AggregatedRow, combinations [][]string, dims []string, metrics []string) []TableRow {
	combinations = capCombinations(combinations)

	out := make([]TableRow, 0, len(rows)*len(combinations))
	for _, row := range rows {
		for _, combo := range combinations {
			tr := TableRow{TimeColumnKey: row.BucketLabel}
			for d, value := range combo {
				if d < len(dims) {
					tr[dims[d]] = value
				}
			}
			for _, metric := range metrics {
				key := SeriesKey(combo, metric)
				v, _ := row.Value(key)
				tr[metric] = RoundTo2(v)
				if comp, ok := row.Value(key + ComparisonSuffix); ok {
					rate, _ := row.Value(key + RateSuffix)
					tr[metric+ComparisonSuffix] = RoundTo2(comp)
					tr[metric+RateSuffix] = RoundTo2(rate)
				}
			}
			out = append(out, tr)
		}
	}
	return out
}

// FormatTable renders table rows as strings in column order, for text and
// CSV output. Missing cells render as "-".
func FormatTable(columns []ColumnDescriptor, rows []TableRow, opts ...Option) [][]string {
	cfg := applyOptions(opts)
	p := message.NewPrinter(cfg.Language)

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, 0, len(columns))
		for _, col := range columns {
			line = append(line, formatCell(p, col, row[col.Key]))
		}
		out = append(out, line)
	}
	return out
}

func formatCell(p *message.Printer, col ColumnDescriptor, v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		if col.Type == ColumnRate {
			return p.Sprintf("%.2f%%", val)
		}
		return p.Sprintf("%.2f", val)
	default:
		return p.Sprint(val)
	}
}
