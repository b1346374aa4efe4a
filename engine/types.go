package engine

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// ENGINE TYPES — Query Contract and Render-Ready Output
// ============================================================================
// QuerySpec is what a caller (UI, CLI, HTTP) hands the engine. Everything
// else in this file is produced by the engine and is safe to serialize.
// ============================================================================

// TimeDimension is the pseudo-dimension id for the date column. It may
// appear in QuerySpec.Dims but is never grouped on.
const TimeDimension = "dt"

// MaxCombinations caps grouping combinations per bucket.
const MaxCombinations = 20

// MaxSeries caps chart series.
const MaxSeries = 20

// ============================================================================
// FACT ROW
// ============================================================================

// FactRow is a single immutable fact: one date, one hour of day, string
// dimension values and numeric metric values.
type FactRow struct {
	Date       string             `json:"dt"`
	Hour       int                `json:"hour"`
	Dimensions map[string]string  `json:"dimensions"`
	Metrics    map[string]float64 `json:"metrics"`
}

// ============================================================================
// QUERY SPEC
// ============================================================================

// FilterOperator is the membership test of a dimension filter.
type FilterOperator string

const (
	OperatorIn    FilterOperator = "IN"
	OperatorNotIn FilterOperator = "NOT_IN"
)

// QueryFilter restricts one dimension to (or away from) a set of values.
type QueryFilter struct {
	ID          string         `json:"id"`
	DimensionID string         `json:"dimensionId"`
	Operator    FilterOperator `json:"operator"`
	Values      []string       `json:"values"`
}

// HourFilterMode selects how HourFilter is interpreted.
type HourFilterMode string

const (
	HourModeRange  HourFilterMode = "range"
	HourModeSelect HourFilterMode = "select"
)

// HourRange is an inclusive hour interval, 0..23.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// HourFilter restricts rows by hour of day. It only applies when Enabled.
type HourFilter struct {
	Enabled       bool           `json:"enabled"`
	Mode          HourFilterMode `json:"mode"`
	Ranges        []HourRange    `json:"ranges,omitempty"`
	SelectedHours []int          `json:"selectedHours,omitempty"`
}

// ComparisonConfig selects the comparison window.
type ComparisonConfig struct {
	Type        timeframe.ComparisonType `json:"type"`
	Granularity timeframe.Granularity    `json:"granularity,omitempty"`
}

// Active reports whether a comparison window is requested.
func (c ComparisonConfig) Active() bool { return c.Type.Active() }

// EffectiveGranularity is the granularity the comparison window is computed
// and labelled with: its own when set, otherwise the query's.
func (c ComparisonConfig) EffectiveGranularity(query timeframe.Granularity) timeframe.Granularity {
	if c.Granularity != "" {
		return c.Granularity
	}
	return query
}

// QuerySpec is the declarative query the engine executes.
type QuerySpec struct {
	Dims        []string              `json:"dims"`
	Metrics     []string              `json:"metrics"`
	Filters     []QueryFilter         `json:"filters,omitempty"`
	HourFilter  HourFilter            `json:"hourFilter"`
	DateRange   timeframe.DateRange   `json:"dateRange"`
	Granularity timeframe.Granularity `json:"granularity"`
	Comparison  ComparisonConfig      `json:"comparison"`
}

// GroupDims returns the dimensions actually grouped on: Dims without the
// time pseudo-dimension, order preserved.
func (q QuerySpec) GroupDims() []string {
	out := make([]string, 0, len(q.Dims))
	for _, d := range q.Dims {
		if d != TimeDimension {
			out = append(out, d)
		}
	}
	return out
}

// ============================================================================
// AGGREGATED ROW
// ============================================================================

// Suffixes of the comparison fields carried next to each series key.
const (
	ComparisonSuffix = "_comp"
	RateSuffix       = "_rate"
)

// AggregatedRow is one time bucket. Values maps series keys (and their
// _comp/_rate variants) to numbers. It serializes flat, one field per key.
type AggregatedRow struct {
	BucketKey             string
	BucketLabel           string
	ComparisonBucketKey   string
	ComparisonBucketLabel string
	Values                map[string]float64
}

// Value looks up a series field.
func (r AggregatedRow) Value(key string) (float64, bool) {
	v, ok := r.Values[key]
	return v, ok
}

func (r AggregatedRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Values)+4)
	for k, v := range r.Values {
		out[k] = v
	}
	out["bucketKey"] = r.BucketKey
	out["bucketLabel"] = r.BucketLabel
	if r.ComparisonBucketLabel != "" {
		out["comparisonBucketKey"] = r.ComparisonBucketKey
		out["comparisonBucketLabel"] = r.ComparisonBucketLabel
	}
	return json.Marshal(out)
}

// ComparisonRate is (main-comp)/comp*100, or 0 when comp is not positive.
func ComparisonRate(main, comp float64) float64 {
	if comp > 0 {
		return (main - comp) / comp * 100
	}
	return 0
}

// SeriesKey names the field of a combination × metric in AggregatedRow.
func SeriesKey(combination []string, metricID string) string {
	if len(combination) == 0 {
		return metricID
	}
	return strings.Join(combination, "_") + "_" + metricID
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ============================================================================
// PROJECTION TYPES
// ============================================================================

// SeriesDescriptor describes one chart series.
type SeriesDescriptor struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	MetricID    string   `json:"metricId"`
	Combination []string `json:"combination"`
	ComboIndex  int      `json:"comboIndex"`
	MetricIndex int      `json:"metricIndex"`
}

// ColumnType classifies a table column.
type ColumnType string

const (
	ColumnDimension  ColumnType = "dimension"
	ColumnMetric     ColumnType = "metric"
	ColumnComparison ColumnType = "comparison"
	ColumnRate       ColumnType = "rate"
)

// ColumnDescriptor describes one table column. Renderers read row[Key].
type ColumnDescriptor struct {
	Key    string     `json:"key"`
	Header string     `json:"header"`
	Type   ColumnType `json:"type"`
	Align  string     `json:"align"`
}

// TableRow is one rendered table line: a bucket × combination keyed by
// column key.
type TableRow map[string]interface{}

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Key        string       `json:"key"`
	Name       string       `json:"name"`
	Data       []ChartPoint `json:"data"`
	Color      string       `json:"color,omitempty"`
	Comparison []ChartPoint `json:"comparison,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// RESULT
// ============================================================================

// Result is everything one execution produces.
type Result struct {
	QueryID         string               `json:"queryId"`
	Rows            []AggregatedRow      `json:"rows"`
	Series          []SeriesDescriptor   `json:"series"`
	SeriesLimited   bool                 `json:"seriesLimited"`
	Combinations    [][]string           `json:"combinations"`
	Columns         []ColumnDescriptor   `json:"columns"`
	Table           []TableRow           `json:"table"`
	Chart           *ChartConfig         `json:"chart,omitempty"`
	Summary         string               `json:"summary"`
	ComparisonRange *timeframe.DateRange `json:"comparisonRange,omitempty"`
	ComparisonLabel string               `json:"comparisonLabel,omitempty"`
	Totals          map[string]float64   `json:"totals"` // per metric, over all filtered main rows
	MainRowCount    int                  `json:"mainRowCount"`
	CompRowCount    int                  `json:"comparisonRowCount"`
}
