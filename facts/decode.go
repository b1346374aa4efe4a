package facts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// DECODING — CSV and JSON into []engine.FactRow
// ============================================================================
// Columns are mapped through the catalog: the date column (dt/date), the
// hour column, catalog dimensions and catalog metrics. Anything else is
// ignored. Metric cells that are missing or not numeric decode to 0, so
// every row carries every catalog metric.
// ============================================================================

var (
	ErrUnsupportedFormat = errors.New("unsupported fact format")
	ErrNoDateColumn      = errors.New("no date column")
)

var altDateLayouts = []string{"2006/01/02", "20060102", "2006-1-2", "2006/1/2"}

// NormalizeDate rewrites common date spellings to YYYY-MM-DD. Unparseable
// input is returned trimmed and unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(timeframe.DateLayout) && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	if _, err := timeframe.ParseDate(s); err == nil {
		return s
	}
	for _, layout := range altDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timeframe.FormatDate(t)
		}
	}
	return s
}

// ParseHour reads an hour cell. Out-of-range or unreadable hours become 0.
func ParseHour(s string) int {
	s = strings.TrimSpace(s)
	h, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		h = int(f)
	}
	if h < 0 || h > 23 {
		return 0
	}
	return h
}

// ParseMetric reads a metric cell. Anything that is not a finite number
// becomes 0.
func ParseMetric(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ============================================================================
// CSV
// ============================================================================

type columnRole int

const (
	columnIgnored columnRole = iota
	columnDate
	columnHour
	columnDimension
	columnMetric
)

type columnMapping struct {
	key  string
	role columnRole
}

// ParseCSV decodes CSV bytes using cat to classify columns. A nil catalog is
// discovered from the data first.
func ParseCSV(data []byte, cat *catalog.Catalog) ([]engine.FactRow, error) {
	if cat == nil {
		var err error
		if cat, err = catalog.DiscoverFromCSV(data); err != nil {
			return nil, fmt.Errorf("failed to discover catalog: %w", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	mappings := make([]columnMapping, len(headers))
	hasDate := false
	for i, h := range headers {
		key := catalog.ColumnKey(h)
		switch {
		case catalog.IsDateColumn(h):
			mappings[i] = columnMapping{key: key, role: columnDate}
			hasDate = true
		case catalog.IsHourColumn(h):
			mappings[i] = columnMapping{key: key, role: columnHour}
		case cat.IsDimension(key):
			mappings[i] = columnMapping{key: key, role: columnDimension}
		case cat.IsMetric(key):
			mappings[i] = columnMapping{key: key, role: columnMetric}
		}
	}
	if !hasDate {
		return nil, ErrNoDateColumn
	}

	metricIDs := cat.MetricIDs()
	var rows []engine.FactRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		row := newRow(metricIDs)
		for i, cell := range record {
			if i >= len(mappings) {
				break
			}
			m := mappings[i]
			switch m.role {
			case columnDate:
				row.Date = NormalizeDate(cell)
			case columnHour:
				row.Hour = ParseHour(cell)
			case columnDimension:
				row.Dimensions[m.key] = strings.TrimSpace(cell)
			case columnMetric:
				row.Metrics[m.key] = ParseMetric(cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newRow(metricIDs []string) engine.FactRow {
	row := engine.FactRow{
		Dimensions: make(map[string]string),
		Metrics:    make(map[string]float64, len(metricIDs)),
	}
	for _, id := range metricIDs {
		row.Metrics[id] = 0
	}
	return row
}

// ============================================================================
// JSON
// ============================================================================

// ParseJSON decodes an array of flat objects, for example
// {"dt":"2025-01-01","hour":9,"city":"北京","call_qty":10}. With a nil
// catalog, number fields become metrics and everything else dimensions.
func ParseJSON(data []byte, cat *catalog.Catalog) ([]engine.FactRow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to decode JSON facts: %w", err)
	}

	var metricIDs []string
	if cat != nil {
		metricIDs = cat.MetricIDs()
	}

	rows := make([]engine.FactRow, 0, len(objects))
	for _, obj := range objects {
		row := newRow(metricIDs)
		for field, raw := range obj {
			key := catalog.ColumnKey(field)
			text := jsonText(raw)
			switch {
			case catalog.IsDateColumn(field):
				row.Date = NormalizeDate(text)
			case catalog.IsHourColumn(field):
				row.Hour = ParseHour(text)
			case cat == nil:
				if _, isNum := raw.(json.Number); isNum {
					row.Metrics[key] = ParseMetric(text)
				} else {
					row.Dimensions[key] = strings.TrimSpace(text)
				}
			case cat.IsDimension(key):
				row.Dimensions[key] = strings.TrimSpace(text)
			case cat.IsMetric(key):
				row.Metrics[key] = ParseMetric(text)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func jsonText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
