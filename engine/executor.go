package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// EXECUTOR — Query Pipeline
// ============================================================================
// Entry point: Execute(ctx, spec, view, md, opts...)
//
// Pipeline:
//   1. Validate granularity and date range (the only hard errors)
//   2. Filter main window → SubView
//   3. Derive comparison window, filter it with the same hour and
//      dimension filters → SubView
//   4. Generate grouping combinations from main rows (capped)
//   5. Aggregate into time buckets
//   6. Project series, columns, table rows, chart, summary
//
// The context is checked between stages; a cancelled execution returns
// ctx.Err() and no partial result. Fact data is never copied or mutated.
// ============================================================================

var (
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidDateRange   = errors.New("invalid date range")
)

// Execute runs a QuerySpec against a FactView and returns a render-ready Result.
func Execute(ctx context.Context, spec QuerySpec, view FactView, md Metadata, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	started := time.Now()

	if !spec.Granularity.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, spec.Granularity)
	}
	if err := spec.DateRange.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDateRange, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	comparing := spec.Comparison.Active()
	if comparing && !timeframe.IsValidComparison(spec.Granularity, spec.Comparison.Type) {
		cfg.Logger.Warn("comparison type not offered for granularity",
			slog.String("granularity", string(spec.Granularity)),
			slog.String("comparison", string(spec.Comparison.Type)))
	}

	dims := spec.GroupDims()
	main := ApplyFilters(view, spec.DateRange, spec.HourFilter, spec.Filters)

	result := &Result{
		QueryID:      uuid.NewString(),
		MainRowCount: main.Len(),
	}

	var comp FactView
	if comparing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		compGranularity := spec.Comparison.EffectiveGranularity(spec.Granularity)
		compRange := timeframe.ComparisonRange(spec.DateRange, compGranularity, spec.Comparison.Type)
		comp = ApplyFilters(view, compRange, spec.HourFilter, spec.Filters)

		result.ComparisonRange = &compRange
		result.ComparisonLabel = timeframe.ComparisonLabel(spec.Comparison.Type, compGranularity)
		result.CompRowCount = comp.Len()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	combos, combosTruncated := CartesianProductLimit(main, dims, cfg.MaxCombos)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Rows = Aggregate(main, comp, spec.Granularity, dims, combos, spec.Metrics, comparing)
	result.Totals = make(map[string]float64, len(spec.Metrics))
	for _, m := range spec.Metrics {
		result.Totals[m] = SumMetric(main, m)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, seriesTruncated := BuildSeries(combos, spec.Metrics, md, opts...)
	result.Series = series
	result.SeriesLimited = combosTruncated || seriesTruncated
	result.Combinations = combos
	result.Columns = BuildColumns(dims, spec.Metrics, spec.Comparison, spec.Granularity, md)
	result.Table = BuildTableRows(result.Rows, combos, dims, spec.Metrics)
	result.Chart = BuildChart(result.Rows, series, timeColumnHeader(spec.Granularity), md, opts...)
	result.Summary = BuildSummary(spec, md)

	cfg.Logger.Debug("query executed",
		slog.String("query_id", result.QueryID),
		slog.Int("rows_in", view.Len()),
		slog.Int("main_rows", result.MainRowCount),
		slog.Int("comparison_rows", result.CompRowCount),
		slog.Int("buckets", len(result.Rows)),
		slog.Int("series", len(result.Series)),
		slog.Bool("series_limited", result.SeriesLimited),
		slog.Duration("duration", time.Since(started)))

	return result, nil
}
