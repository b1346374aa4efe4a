package engine

// Metadata resolves display names of metrics and dimensions. The catalog
// package implements it; a nil Metadata falls back to ids.
type Metadata interface {
	MetricName(id string) string
	MetricUnit(id string) string
	DimensionName(id string) string
}

func metricName(md Metadata, id string) string {
	if md == nil {
		return id
	}
	if name := md.MetricName(id); name != "" {
		return name
	}
	return id
}

func metricUnit(md Metadata, id string) string {
	if md == nil {
		return ""
	}
	return md.MetricUnit(id)
}

func dimensionName(md Metadata, id string) string {
	if md == nil {
		return id
	}
	if name := md.DimensionName(id); name != "" {
		return name
	}
	return id
}
