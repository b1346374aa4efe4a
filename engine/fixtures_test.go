package engine

import (
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

func fact(date string, hour int, dims map[string]string, metrics map[string]float64) FactRow {
	return FactRow{Date: date, Hour: hour, Dimensions: dims, Metrics: metrics}
}

func cityFact(date, city string, calls float64) FactRow {
	return fact(date, 0, map[string]string{"city": city}, map[string]float64{"call_qty": calls})
}

type stubMetadata map[string]string

func (m stubMetadata) MetricName(id string) string    { return m[id] }
func (m stubMetadata) MetricUnit(id string) string    { return m[id+".unit"] }
func (m stubMetadata) DimensionName(id string) string { return m[id] }

var testMetadata = stubMetadata{
	"call_qty":      "呼叫量",
	"call_qty.unit": "次",
	"connected_qty": "接通量",
	"city":          "城市",
	"supplier":      "供应商",
}

func daySpec(start, end string, dims []string, metrics ...string) QuerySpec {
	return QuerySpec{
		Dims:        dims,
		Metrics:     metrics,
		DateRange:   timeframe.DateRange{StartDate: start, EndDate: end},
		Granularity: timeframe.GranularityDay,
		Comparison:  ComparisonConfig{Type: timeframe.ComparisonNone},
	}
}

// gridFacts returns one row per city × supplier on date, each with 1 call.
func gridFacts(date string, cities, suppliers []string) []FactRow {
	var rows []FactRow
	for _, c := range cities {
		for _, s := range suppliers {
			rows = append(rows, fact(date, 10,
				map[string]string{"city": c, "supplier": s},
				map[string]float64{"call_qty": 1}))
		}
	}
	return rows
}
