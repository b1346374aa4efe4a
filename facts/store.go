// Package facts holds the fact rows a query runs against: decoding from CSV
// and JSON, an immutable in-memory store, and a seeded demo generator.
package facts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// STORE — Immutable Fact Collection
// ============================================================================
// A Store is built once and only read afterwards. Queries see it through an
// engine.FactView and never copy or reorder the rows.
// ============================================================================

// Store is an immutable set of fact rows plus the catalog that describes them.
type Store struct {
	rows    []engine.FactRow
	view    engine.FactView
	catalog *catalog.Catalog
}

// NewStore wraps rows. The caller must not modify rows afterwards. A nil
// catalog is replaced by one discovered from the rows.
func NewStore(rows []engine.FactRow, cat *catalog.Catalog) *Store {
	view := engine.NewSliceView(rows)
	if cat == nil {
		cat = catalog.Discover(view)
	}
	return &Store{rows: rows, view: view, catalog: cat}
}

// View returns the read-only view the engine queries.
func (s *Store) View() engine.FactView { return s.view }

// Catalog returns the catalog describing the store's columns.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Len returns the number of fact rows.
func (s *Store) Len() int { return len(s.rows) }

// Rows exposes the underlying rows. Treat them as read-only.
func (s *Store) Rows() []engine.FactRow { return s.rows }

// DateSpan returns the earliest and latest fact dates. ok is false for an
// empty store.
func (s *Store) DateSpan() (span timeframe.DateRange, ok bool) {
	for _, r := range s.rows {
		if r.Date == "" {
			continue
		}
		if !ok || r.Date < span.StartDate {
			span.StartDate = r.Date
		}
		if !ok || r.Date > span.EndDate {
			span.EndDate = r.Date
		}
		ok = true
	}
	return span, ok
}

// LoadFile reads a .csv or .json fact file. With a nil catalog the columns
// are classified by discovery.
func LoadFile(path string, cat *catalog.Catalog) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}

	var rows []engine.FactRow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		rows, err = ParseJSON(data, cat)
	case ".csv", "":
		if cat == nil {
			if cat, err = catalog.DiscoverFromCSV(data, catalog.DiscoverOptions{
				Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				MaxValues: 50,
			}); err != nil {
				return nil, fmt.Errorf("failed to discover catalog: %w", err)
			}
		}
		rows, err = ParseCSV(data, cat)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return NewStore(rows, cat), nil
}
