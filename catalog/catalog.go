// Package catalog describes the metrics and dimensions a fact dataset offers:
// display names, units, aggregation kinds and which selections are compatible.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// CATALOG — Metric and Dimension Definitions
// ============================================================================
// Loaded from YAML (or discovered from data). The engine reads display
// names through engine.Metadata; callers use Validate to gate selections
// before handing a QuerySpec to the engine.
// ============================================================================

// AggregationKind is the declared aggregation of a metric. The engine
// always sums; the kind is descriptive.
type AggregationKind string

const (
	AggregationSum           AggregationKind = "SUM"
	AggregationAvg           AggregationKind = "AVG"
	AggregationCount         AggregationKind = "COUNT"
	AggregationCountDistinct AggregationKind = "COUNT_DISTINCT"
	AggregationCalc          AggregationKind = "CALC"
)

// MetricDefinition describes a numeric fact field.
type MetricDefinition struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Aggregation AggregationKind `yaml:"aggregation" json:"aggregation"`
	Unit        string          `yaml:"unit,omitempty" json:"unit,omitempty"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Formula     string          `yaml:"formula,omitempty" json:"formula,omitempty"`

	// Dimensions lists the dimensions this metric can be grouped or filtered
	// by. Empty means every dimension.
	Dimensions []string `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`

	// Granularities lists supported time granularities. Empty means all.
	Granularities []timeframe.Granularity `yaml:"granularities,omitempty" json:"granularities,omitempty"`
}

// DimensionDefinition describes a string fact field.
type DimensionDefinition struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Core            bool     `yaml:"core,omitempty" json:"core,omitempty"`
	Values          []string `yaml:"values,omitempty" json:"values,omitempty"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
	CardinalityHint string   `yaml:"cardinalityHint,omitempty" json:"cardinalityHint,omitempty"` // "low", "medium", "high"
}

// SkippedColumn records why a column was excluded during discovery.
type SkippedColumn struct {
	Column string `yaml:"column" json:"column"`
	Reason string `yaml:"reason" json:"reason"`
}

// Catalog is the complete metadata of a dataset.
type Catalog struct {
	Name        string                `yaml:"name" json:"name"`
	Version     string                `yaml:"version,omitempty" json:"version,omitempty"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Dimensions  []DimensionDefinition `yaml:"dimensions" json:"dimensions"`
	Metrics     []MetricDefinition    `yaml:"metrics" json:"metrics"`
	Skipped     []SkippedColumn       `yaml:"skipped,omitempty" json:"skipped,omitempty"`

	dimensions map[string]int
	metrics    map[string]int
}

var (
	ErrDuplicateID = errors.New("duplicate id")
	ErrEmptyID     = errors.New("empty id")
)

// New builds a catalog and indexes it.
func New(name string, dimensions []DimensionDefinition, metrics []MetricDefinition) (*Catalog, error) {
	c := &Catalog{Name: name, Dimensions: dimensions, Metrics: metrics}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load decodes a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile decodes a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

//go:embed default.yaml
var defaultYAML []byte

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
})

// Default returns the built-in call-center catalog. Treat it as read-only.
func Default() *Catalog {
	return defaultCatalog()
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Catalog) index() error {
	c.dimensions = make(map[string]int, len(c.Dimensions))
	c.metrics = make(map[string]int, len(c.Metrics))

	var errs []error
	for i, d := range c.Dimensions {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("dimension #%d: %w", i, ErrEmptyID))
			continue
		}
		if _, dup := c.dimensions[d.ID]; dup {
			errs = append(errs, fmt.Errorf("dimension %q: %w", d.ID, ErrDuplicateID))
			continue
		}
		c.dimensions[d.ID] = i
	}
	for i, m := range c.Metrics {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("metric #%d: %w", i, ErrEmptyID))
			continue
		}
		if _, dup := c.metrics[m.ID]; dup {
			errs = append(errs, fmt.Errorf("metric %q: %w", m.ID, ErrDuplicateID))
			continue
		}
		if m.Aggregation == "" {
			c.Metrics[i].Aggregation = AggregationSum
		}
		for _, d := range m.Dimensions {
			if _, ok := c.dimensions[d]; !ok {
				errs = append(errs, fmt.Errorf("metric %q: %w: %s", m.ID, ErrUnknownDimension, d))
			}
		}
		c.metrics[m.ID] = i
	}
	return errors.Join(errs...)
}

// ============================================================================
// LOOKUPS
// ============================================================================

// Metric returns the metric with the given id.
func (c *Catalog) Metric(id string) (MetricDefinition, bool) {
	i, ok := c.metrics[id]
	if !ok {
		return MetricDefinition{}, false
	}
	return c.Metrics[i], true
}

// Dimension returns the dimension with the given id.
func (c *Catalog) Dimension(id string) (DimensionDefinition, bool) {
	i, ok := c.dimensions[id]
	if !ok {
		return DimensionDefinition{}, false
	}
	return c.Dimensions[i], true
}

func (c *Catalog) MetricName(id string) string {
	if m, ok := c.Metric(id); ok {
		return m.Name
	}
	return ""
}

func (c *Catalog) MetricUnit(id string) string {
	if m, ok := c.Metric(id); ok {
		return m.Unit
	}
	return ""
}

func (c *Catalog) DimensionName(id string) string {
	if d, ok := c.Dimension(id); ok {
		return d.Name
	}
	return ""
}

// IsMetric reports whether id names a metric.
func (c *Catalog) IsMetric(id string) bool {
	_, ok := c.metrics[id]
	return ok
}

// IsDimension reports whether id names a dimension.
func (c *Catalog) IsDimension(id string) bool {
	_, ok := c.dimensions[id]
	return ok
}

// MetricIDs returns metric ids in catalog order.
func (c *Catalog) MetricIDs() []string {
	ids := make([]string, len(c.Metrics))
	for i, m := range c.Metrics {
		ids[i] = m.ID
	}
	return ids
}

// DimensionIDs returns dimension ids in catalog order.
func (c *Catalog) DimensionIDs() []string {
	ids := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		ids[i] = d.ID
	}
	return ids
}
