// Package bi is a query engine for multi-dimensional reports over hourly
// call-center facts.
//
// Usage:
//
//	import "github.com/Hackerer/sql-builder-BI-sub000/engine"
//
//	result, err := engine.Execute(ctx, spec, store.View(), store.Catalog(),
//	    engine.WithMaxSeries(20),
//	)
//
// The engine takes a QuerySpec (dimensions, metrics, filters, hour filter,
// date range, granularity and comparison) and a fact view, and returns
// aggregated rows keyed by time bucket and dimension combination, plus
// render-ready columns, table rows, chart config and a text summary.
//
// The timeframe package owns date buckets and comparison windows, catalog
// describes and validates what can be queried, and facts loads, generates
// and writes fact rows. cmd/bi exposes all of it as a CLI and HTTP server.
package bi
