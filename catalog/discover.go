package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Hackerer/sql-builder-BI-sub000/engine"
)

// ============================================================================
// AUTO-DISCOVERY — Heuristic Classification
// ============================================================================
// Builds a Catalog for a dataset that ships without one.
//
// Per column:
//   1. The date and hour columns are recognised by name and left out
//   2. Numeric columns become SUM metrics
//   3. Text columns become dimensions, unless every row is unique
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // Max rows to inspect (0 = all, capped). Default: 1000
	RecoverColumns []string // Force-include columns that were auto-skipped
	Name           string   // Catalog name override
	MaxValues      int      // Distinct values recorded per dimension. Default: 50
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		SampleSize: 1000,
		MaxValues:  50,
	}
}

var (
	ErrNoColumns = errors.New("no columns")
	ErrNoRows    = errors.New("no data rows")
)

// DateColumns and HourColumns are the header names treated as the time axis.
var (
	DateColumns = []string{"dt", "date"}
	HourColumns = []string{"hour", "hr"}
)

// IsDateColumn reports whether a header names the fact date.
func IsDateColumn(header string) bool {
	return slices.Contains(DateColumns, strings.ToLower(strings.TrimSpace(header)))
}

// IsHourColumn reports whether a header names the fact hour.
func IsHourColumn(header string) bool {
	return slices.Contains(HourColumns, strings.ToLower(strings.TrimSpace(header)))
}

// DiscoverFromCSV infers a catalog by inspecting CSV data.
func DiscoverFromCSV(data []byte, opts ...DiscoverOptions) (*Catalog, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) == 0 {
		return nil, ErrNoColumns
	}

	limit := opt.SampleSize
	if limit <= 0 {
		limit = 100000
	}

	var rows [][]string
	for len(rows) < limit {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	columns := make([]columnAnalysis, 0, len(headers))
	for i, header := range headers {
		if IsDateColumn(header) || IsHourColumn(header) {
			continue
		}
		columns = append(columns, analyzeColumn(header, i, rows, opt.MaxValues))
	}

	return buildCatalog(columns, len(rows), opt)
}

// Discover infers a catalog from an already loaded fact view. Keys are
// reported in sorted order.
func Discover(view engine.FactView, opts ...DiscoverOptions) *Catalog {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	dimKeys := slices.Sorted(slices.Values(view.DimensionKeys()))
	metKeys := slices.Sorted(slices.Values(view.MetricKeys()))

	columns := make([]columnAnalysis, 0, len(dimKeys)+len(metKeys))
	for _, key := range dimKeys {
		col := columnAnalysis{header: key, key: key, colType: typeString}
		seen := make(map[string]bool)
		for i := 0; i < view.Len(); i++ {
			v := view.Dimension(i, key)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			col.uniqueCount++
			if len(col.values) < opt.MaxValues {
				col.values = append(col.values, v)
			}
		}
		columns = append(columns, col)
	}
	for _, key := range metKeys {
		columns = append(columns, columnAnalysis{header: key, key: key, colType: typeNumeric})
	}

	// Views carry no per-row identifiers, so uniqueness never skips a column here.
	c, _ := buildCatalog(columns, 0, opt)
	return c
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnType int

const (
	typeString columnType = iota
	typeNumeric
)

type columnAnalysis struct {
	header      string
	key         string
	colType     columnType
	uniqueCount int
	nonEmpty    int
	values      []string // distinct values in first-seen order
}

func analyzeColumn(header string, index int, rows [][]string, maxValues int) columnAnalysis {
	col := columnAnalysis{
		header: strings.TrimSpace(header),
		key:    toSnakeCase(header),
	}

	seen := make(map[string]bool)
	numeric := 0
	for _, row := range rows {
		if index >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[index])
		if isNull(v) {
			continue
		}
		col.nonEmpty++
		if isNumeric(v) {
			numeric++
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		col.uniqueCount++
		if len(col.values) < maxValues {
			col.values = append(col.values, v)
		}
	}

	// Requires 80%+ of non-null values to parse.
	if col.nonEmpty > 0 && numeric >= int(float64(col.nonEmpty)*0.8) {
		col.colType = typeNumeric
	}
	return col
}

func buildCatalog(columns []columnAnalysis, totalRows int, opt DiscoverOptions) (*Catalog, error) {
	recoverSet := make(map[string]bool, len(opt.RecoverColumns))
	for _, c := range opt.RecoverColumns {
		recoverSet[strings.ToLower(c)] = true
	}

	name := opt.Name
	if name == "" {
		name = "Auto-discovered Dataset"
	}
	c := &Catalog{Name: name, Version: "1.0"}

	for _, col := range columns {
		if col.key == "" {
			c.Skipped = append(c.Skipped, SkippedColumn{Column: col.header, Reason: "Empty header"})
			continue
		}

		if col.colType == typeNumeric {
			c.Metrics = append(c.Metrics, MetricDefinition{
				ID:          col.key,
				Name:        toDisplayName(col.header),
				Aggregation: AggregationSum,
			})
			continue
		}

		recovered := recoverSet[strings.ToLower(col.header)] || recoverSet[col.key]
		switch {
		case totalRows > 0 && col.nonEmpty == 0 && !recovered:
			c.Skipped = append(c.Skipped, SkippedColumn{Column: col.header, Reason: "All values are empty"})
		case totalRows > 10 && col.uniqueCount == totalRows && !recovered:
			c.Skipped = append(c.Skipped, SkippedColumn{Column: col.header, Reason: "Unique per row, likely an identifier"})
		default:
			c.Dimensions = append(c.Dimensions, DimensionDefinition{
				ID:              col.key,
				Name:            toDisplayName(col.header),
				Values:          col.values,
				CardinalityHint: cardinalityHint(col.uniqueCount),
			})
		}
	}

	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func cardinalityHint(unique int) string {
	switch {
	case unique <= 10:
		return "low"
	case unique <= 100:
		return "medium"
	default:
		return "high"
	}
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

func isNull(s string) bool {
	switch s {
	case "", "null", "NULL", "N/A", "n/a", "-":
		return true
	}
	return false
}

func isNumeric(s string) bool {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteRune('_')
		}
		b.WriteRune(r)
		prev = r
	}

	s = strings.ToLower(b.String())
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// toDisplayName cleans a header for human display.
// "talk_minutes" → "Talk Minutes", "城市" → "城市"
func toDisplayName(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, " ") {
		return s
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}

// ColumnKey normalizes a source header into the id discovery would give it.
func ColumnKey(header string) string {
	return toSnakeCase(header)
}
