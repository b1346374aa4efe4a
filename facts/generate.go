package facts

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// DEMO GENERATOR — Seeded Call-Center Facts
// ============================================================================
// Produces one row per day × hour × combination of the catalog's core
// dimension values. Non-core dimensions get a random value per row. The
// same options always produce the same rows.
// ============================================================================

// GenerateOptions controls Generate.
type GenerateOptions struct {
	Start   string           // first date, YYYY-MM-DD
	Days    int              // number of days, at least 1
	Seed    uint64           // PCG seed
	Catalog *catalog.Catalog // defaults to catalog.Default()
}

// hourWeight shapes call volume across the day: quiet overnight, peaks
// around 10:00 and 15:00.
var hourWeight = [24]float64{
	0.10, 0.06, 0.04, 0.03, 0.03, 0.05,
	0.15, 0.35, 0.70, 0.95, 1.00, 0.90,
	0.60, 0.75, 0.90, 1.00, 0.85, 0.70,
	0.55, 0.45, 0.35, 0.28, 0.20, 0.14,
}

// Generate builds a deterministic demo dataset.
func Generate(opts GenerateOptions) ([]engine.FactRow, error) {
	start, err := timeframe.ParseDate(opts.Start)
	if err != nil {
		return nil, err
	}
	if opts.Days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", opts.Days)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var core, extra []catalog.DimensionDefinition
	for _, d := range cat.Dimensions {
		if len(d.Values) == 0 {
			continue
		}
		if d.Core {
			core = append(core, d)
		} else {
			extra = append(extra, d)
		}
	}
	combos := coreCombinations(core)

	// Each combination keeps a stable scale so series differ visibly.
	scale := make([]float64, len(combos))
	for i := range scale {
		scale[i] = 0.5 + rng.Float64()
	}

	rows := make([]engine.FactRow, 0, opts.Days*24*len(combos))
	for day := 0; day < opts.Days; day++ {
		date := timeframe.FormatDate(start.AddDate(0, 0, day))
		weekday := start.AddDate(0, 0, day).Weekday()
		dayFactor := 1.0
		if weekday == 0 || weekday == 6 {
			dayFactor = 0.65
		}

		for hour := 0; hour < 24; hour++ {
			for ci, combo := range combos {
				dims := make(map[string]string, len(core)+len(extra))
				for i, d := range core {
					dims[d.ID] = combo[i]
				}
				for _, d := range extra {
					dims[d.ID] = d.Values[rng.IntN(len(d.Values))]
				}

				base := 120 * hourWeight[hour] * dayFactor * scale[ci]
				rows = append(rows, engine.FactRow{
					Date:       date,
					Hour:       hour,
					Dimensions: dims,
					Metrics:    generateMetrics(rng, cat, base),
				})
			}
		}
	}
	return rows, nil
}

func generateMetrics(rng *rand.Rand, cat *catalog.Catalog, base float64) map[string]float64 {
	calls := math.Round(base * (0.8 + 0.4*rng.Float64()))
	connected := math.Round(calls * (0.55 + 0.35*rng.Float64()))
	minutes := round2(connected * (1.5 + 3*rng.Float64()))

	out := make(map[string]float64, len(cat.Metrics))
	for _, m := range cat.Metrics {
		switch m.ID {
		case "call_qty":
			out[m.ID] = calls
		case "connected_qty":
			out[m.ID] = connected
		case "talk_minutes":
			out[m.ID] = minutes
		case "cost":
			out[m.ID] = round2(minutes * 0.12)
		case "connect_rate":
			if calls > 0 {
				out[m.ID] = round2(connected / calls * 100)
			} else {
				out[m.ID] = 0
			}
		case "avg_talk_minutes":
			if connected > 0 {
				out[m.ID] = round2(minutes / connected)
			} else {
				out[m.ID] = 0
			}
		case "unique_callers":
			out[m.ID] = math.Round(calls * (0.6 + 0.3*rng.Float64()))
		default:
			out[m.ID] = round2(base * rng.Float64())
		}
	}
	return out
}

// coreCombinations returns the Cartesian product of core dimension values,
// first dimension varying slowest. No core dimensions yields one empty
// combination.
func coreCombinations(dims []catalog.DimensionDefinition) [][]string {
	combos := [][]string{{}}
	for _, d := range dims {
		next := make([][]string, 0, len(combos)*len(d.Values))
		for _, c := range combos {
			for _, v := range d.Values {
				combo := make([]string, len(c), len(c)+1)
				copy(combo, c)
				next = append(next, append(combo, v))
			}
		}
		combos = next
	}
	return combos
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
