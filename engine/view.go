package engine

// ============================================================================
// FACT VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns fact data. It reads through this interface.
//
// Implementations:
//   SliceView      wraps []FactRow (CSV, JSON, generated data)
//   DomainView[T]  reads typed structs via accessor functions (zero-copy)
//   SubView        filtered subset (indices into parent, zero-copy)
//
// Filtering produces SubViews, so a query never mutates or copies the store.
// ============================================================================

// FactView provides indexed access to a fact collection.
// The engine calls Dimension/Metric in tight loops; keep implementations fast.
type FactView interface {
	Len() int
	Date(index int) string
	Hour(index int) int
	Dimension(index int, key string) string
	Metric(index int, key string) float64
	DimensionKeys() []string // available dimension keys
	MetricKeys() []string    // available metric keys
}

// ============================================================================
// SLICE VIEW — wraps []FactRow
// ============================================================================

// SliceView wraps a []FactRow slice as a FactView.
type SliceView struct {
	rows    []FactRow
	dimKeys []string
	metKeys []string
}

// NewSliceView creates a FactView from a []FactRow slice.
func NewSliceView(rows []FactRow) FactView {
	v := &SliceView{rows: rows}
	v.cacheKeys()
	return v
}

func (v *SliceView) cacheKeys() {
	dimSeen := make(map[string]bool)
	metSeen := make(map[string]bool)
	for _, r := range v.rows {
		for k := range r.Dimensions {
			if !dimSeen[k] {
				dimSeen[k] = true
				v.dimKeys = append(v.dimKeys, k)
			}
		}
		for k := range r.Metrics {
			if !metSeen[k] {
				metSeen[k] = true
				v.metKeys = append(v.metKeys, k)
			}
		}
	}
}

func (v *SliceView) Len() int { return len(v.rows) }

func (v *SliceView) Date(i int) string {
	if i < 0 || i >= len(v.rows) {
		return ""
	}
	return v.rows[i].Date
}

func (v *SliceView) Hour(i int) int {
	if i < 0 || i >= len(v.rows) {
		return 0
	}
	return v.rows[i].Hour
}

func (v *SliceView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.rows) {
		return ""
	}
	return v.rows[i].Dimensions[key]
}

func (v *SliceView) Metric(i int, key string) float64 {
	if i < 0 || i >= len(v.rows) {
		return 0
	}
	return finite(v.rows[i].Metrics[key])
}

func (v *SliceView) DimensionKeys() []string { return v.dimKeys }
func (v *SliceView) MetricKeys() []string    { return v.metKeys }

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent FactView.
// Holds indices into the parent, no data copy.
type SubView struct {
	parent  FactView
	indices []int
}

func newSubView(parent FactView, indices []int) FactView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Date(i int) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Date(v.indices[i])
}

func (v *SubView) Hour(i int) int {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Hour(v.indices[i])
}

func (v *SubView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *SubView) Metric(i int, key string) float64 {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Metric(v.indices[i], key)
}

func (v *SubView) DimensionKeys() []string { return v.parent.DimensionKeys() }
func (v *SubView) MetricKeys() []string    { return v.parent.MetricKeys() }

// ============================================================================
// DOMAIN ADAPTER — Zero-copy typed struct access
// ============================================================================
//
// Usage:
//
//	adapter := engine.NewDomainAdapter[CallRecord]().
//	    Date(func(c CallRecord) string { return c.Day }).
//	    Hour(func(c CallRecord) int { return c.Hour }).
//	    Dimension("city", func(c CallRecord) string { return c.City }).
//	    Metric("call_qty", func(c CallRecord) float64 { return float64(c.Calls) })
//
//	view := adapter.Bind(records)
//	result, _ := engine.Execute(ctx, spec, view, catalog)
//
// ============================================================================

// DomainAdapter builds a FactView from typed structs.
// Declare once, bind many times.
type DomainAdapter[T any] struct {
	date     func(T) string
	hour     func(T) int
	dimOrder []string
	metOrder []string
	dims     map[string]func(T) string
	mets     map[string]func(T) float64
}

// NewDomainAdapter creates a new adapter for type T.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{
		dims: make(map[string]func(T) string),
		mets: make(map[string]func(T) float64),
	}
}

// Date registers the date accessor.
func (a *DomainAdapter[T]) Date(fn func(T) string) *DomainAdapter[T] {
	a.date = fn
	return a
}

// Hour registers the hour-of-day accessor.
func (a *DomainAdapter[T]) Hour(fn func(T) int) *DomainAdapter[T] {
	a.hour = fn
	return a
}

// Dimension registers a dimension accessor.
func (a *DomainAdapter[T]) Dimension(key string, fn func(T) string) *DomainAdapter[T] {
	if _, exists := a.dims[key]; !exists {
		a.dimOrder = append(a.dimOrder, key)
	}
	a.dims[key] = fn
	return a
}

// Metric registers a metric accessor.
func (a *DomainAdapter[T]) Metric(key string, fn func(T) float64) *DomainAdapter[T] {
	if _, exists := a.mets[key]; !exists {
		a.metOrder = append(a.metOrder, key)
	}
	a.mets[key] = fn
	return a
}

// Bind creates a FactView from a data slice. Zero-copy: holds a reference.
func (a *DomainAdapter[T]) Bind(data []T) FactView {
	return &DomainView[T]{
		data:    data,
		date:    a.date,
		hour:    a.hour,
		dims:    a.dims,
		mets:    a.mets,
		dimKeys: a.dimOrder,
		metKeys: a.metOrder,
	}
}

// DomainView reads typed struct fields via registered accessor functions.
type DomainView[T any] struct {
	data    []T
	date    func(T) string
	hour    func(T) int
	dims    map[string]func(T) string
	mets    map[string]func(T) float64
	dimKeys []string
	metKeys []string
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Date(i int) string {
	if i < 0 || i >= len(v.data) || v.date == nil {
		return ""
	}
	return v.date(v.data[i])
}

func (v *DomainView[T]) Hour(i int) int {
	if i < 0 || i >= len(v.data) || v.hour == nil {
		return 0
	}
	return v.hour(v.data[i])
}

func (v *DomainView[T]) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.data) {
		return ""
	}
	if fn, ok := v.dims[key]; ok {
		return fn(v.data[i])
	}
	return ""
}

func (v *DomainView[T]) Metric(i int, key string) float64 {
	if i < 0 || i >= len(v.data) {
		return 0
	}
	if fn, ok := v.mets[key]; ok {
		return finite(fn(v.data[i]))
	}
	return 0
}

func (v *DomainView[T]) DimensionKeys() []string { return v.dimKeys }
func (v *DomainView[T]) MetricKeys() []string    { return v.metKeys }
