package catalog

import (
	"errors"
	"fmt"

	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// VALIDATION — Selection Gating
// ============================================================================
// The engine trusts its caller. These checks run before a QuerySpec is
// handed over, and report every problem at once.
// ============================================================================

var (
	ErrNoMetrics               = errors.New("no metrics selected")
	ErrUnknownMetric           = errors.New("unknown metric")
	ErrUnknownDimension        = errors.New("unknown dimension")
	ErrIncompatibleDimension   = errors.New("dimension not available for metric")
	ErrUnsupportedGranularity  = errors.New("granularity not supported")
	ErrInvalidComparison       = errors.New("comparison type not available for granularity")
	ErrInvalidFilterOperator   = errors.New("invalid filter operator")
	ErrInvalidHourFilterConfig = errors.New("invalid hour filter")
)

// Validate checks spec against the catalog and returns all problems joined.
func (c *Catalog) Validate(spec engine.QuerySpec) error {
	var errs []error

	if len(spec.Metrics) == 0 {
		errs = append(errs, ErrNoMetrics)
	}
	if !spec.Granularity.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, spec.Granularity))
	}
	if err := spec.DateRange.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !timeframe.IsValidComparison(spec.Granularity, spec.Comparison.Type) {
		errs = append(errs, fmt.Errorf("%w: %s/%s", ErrInvalidComparison, spec.Comparison.Type, spec.Granularity))
	}

	dims := spec.GroupDims()
	for _, d := range dims {
		if !c.IsDimension(d) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownDimension, d))
		}
	}

	for _, id := range spec.Metrics {
		m, ok := c.Metric(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownMetric, id))
			continue
		}
		for _, d := range dims {
			if c.IsDimension(d) && !m.supportsDimension(d) {
				errs = append(errs, fmt.Errorf("%w: %s/%s", ErrIncompatibleDimension, d, id))
			}
		}
		if spec.Granularity.Valid() && !m.supportsGranularity(spec.Granularity) {
			errs = append(errs, fmt.Errorf("%w: %s for %s", ErrUnsupportedGranularity, spec.Granularity, id))
		}
	}

	for _, f := range spec.Filters {
		if !c.IsDimension(f.DimensionID) {
			errs = append(errs, fmt.Errorf("%w: filter %s on %s", ErrUnknownDimension, f.ID, f.DimensionID))
		}
		if f.Operator != engine.OperatorIn && f.Operator != engine.OperatorNotIn {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidFilterOperator, f.Operator))
		}
	}

	errs = append(errs, validateHours(spec.HourFilter)...)

	return errors.Join(errs...)
}

func validateHours(f engine.HourFilter) []error {
	if !f.Enabled {
		return nil
	}
	var errs []error
	switch f.Mode {
	case engine.HourModeRange:
		for _, r := range f.Ranges {
			if r.Start < 0 || r.End > 23 || r.Start > r.End {
				errs = append(errs, fmt.Errorf("%w: range %d-%d", ErrInvalidHourFilterConfig, r.Start, r.End))
			}
		}
	case engine.HourModeSelect:
		for _, h := range f.SelectedHours {
			if h < 0 || h > 23 {
				errs = append(errs, fmt.Errorf("%w: hour %d", ErrInvalidHourFilterConfig, h))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("%w: mode %q", ErrInvalidHourFilterConfig, f.Mode))
	}
	return errs
}

func (m MetricDefinition) supportsDimension(id string) bool {
	if len(m.Dimensions) == 0 {
		return true
	}
	for _, d := range m.Dimensions {
		if d == id {
			return true
		}
	}
	return false
}

func (m MetricDefinition) supportsGranularity(g timeframe.Granularity) bool {
	if len(m.Granularities) == 0 {
		return true
	}
	for _, v := range m.Granularities {
		if v == g {
			return true
		}
	}
	return false
}

// CompatibleDimensions returns the dimensions every listed metric supports,
// in catalog order. Unknown metric ids are ignored.
func (c *Catalog) CompatibleDimensions(metricIDs []string) []string {
	var out []string
	for _, d := range c.Dimensions {
		ok := true
		for _, id := range metricIDs {
			if m, known := c.Metric(id); known && !m.supportsDimension(d.ID) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d.ID)
		}
	}
	return out
}

// CompatibleGranularities returns the granularities every listed metric
// supports, finest first.
func (c *Catalog) CompatibleGranularities(metricIDs []string) []timeframe.Granularity {
	var out []timeframe.Granularity
	for _, g := range timeframe.Granularities {
		ok := true
		for _, id := range metricIDs {
			if m, known := c.Metric(id); known && !m.supportsGranularity(g) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, g)
		}
	}
	return out
}

// CompatibleMetrics returns the metrics that support every listed dimension.
func (c *Catalog) CompatibleMetrics(dimensionIDs []string) []string {
	var out []string
	for _, m := range c.Metrics {
		ok := true
		for _, d := range dimensionIDs {
			if d != engine.TimeDimension && !m.supportsDimension(d) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m.ID)
		}
	}
	return out
}
