package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// TEXT BUILDER — One-Line Query Summary
// ============================================================================
// Example:
//   2025-01-01 至 2025-01-07 · 按日 · 指标: 呼叫量、接通量 · 维度: 城市 ·
//   筛选: 2 项 · 时段: 9-12点 · 对比: 日环比 (昨日)
// ============================================================================

// SummarySeparator joins summary parts.
const SummarySeparator = " · "

// BuildSummary describes a query in one line.
func BuildSummary(spec QuerySpec, md Metadata) string {
	parts := []string{
		spec.DateRange.String(),
		timeframe.GranularityName(spec.Granularity),
	}

	if len(spec.Metrics) > 0 {
		names := make([]string, 0, len(spec.Metrics))
		for _, m := range spec.Metrics {
			names = append(names, metricName(md, m))
		}
		parts = append(parts, "指标: "+strings.Join(names, "、"))
	}

	if dims := spec.GroupDims(); len(dims) > 0 {
		names := make([]string, 0, len(dims))
		for _, d := range dims {
			names = append(names, dimensionName(md, d))
		}
		parts = append(parts, "维度: "+strings.Join(names, "、"))
	}

	if n := activeFilterCount(spec.Filters); n > 0 {
		parts = append(parts, fmt.Sprintf("筛选: %d 项", n))
	}

	if spec.HourFilter.Enabled {
		parts = append(parts, "时段: "+describeHours(spec.HourFilter))
	}

	if spec.Comparison.Active() {
		parts = append(parts, "对比: "+timeframe.ComparisonLabel(spec.Comparison.Type, spec.Comparison.EffectiveGranularity(spec.Granularity)))
	}

	return strings.Join(parts, SummarySeparator)
}

func activeFilterCount(filters []QueryFilter) int {
	n := 0
	for _, f := range filters {
		if len(f.Values) > 0 {
			n++
		}
	}
	return n
}

func describeHours(f HourFilter) string {
	if f.Mode == HourModeSelect {
		if len(f.SelectedHours) == 0 {
			return "无"
		}
		hours := make([]string, 0, len(f.SelectedHours))
		for _, h := range f.SelectedHours {
			hours = append(hours, strconv.Itoa(h))
		}
		return strings.Join(hours, ",") + "点"
	}
	if len(f.Ranges) == 0 {
		return "全天"
	}
	ranges := make([]string, 0, len(f.Ranges))
	for _, r := range f.Ranges {
		ranges = append(ranges, fmt.Sprintf("%d-%d点", r.Start, r.End))
	}
	return strings.Join(ranges, ",")
}
