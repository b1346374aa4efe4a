package facts

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
)

// WriteCSV writes rows as CSV with a dt,hour,<dimensions>,<metrics> header.
// Column order follows cat, or sorted keys when cat is nil.
func WriteCSV(w io.Writer, rows []engine.FactRow, cat *catalog.Catalog) error {
	var dims, metrics []string
	if cat != nil {
		dims, metrics = cat.DimensionIDs(), cat.MetricIDs()
	} else {
		view := engine.NewSliceView(rows)
		dims = slices.Sorted(slices.Values(view.DimensionKeys()))
		metrics = slices.Sorted(slices.Values(view.MetricKeys()))
	}

	cw := csv.NewWriter(w)
	header := append([]string{engine.TimeDimension, "hour"}, dims...)
	header = append(header, metrics...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range rows {
		record[0] = r.Date
		record[1] = strconv.Itoa(r.Hour)
		for i, d := range dims {
			record[2+i] = r.Dimensions[d]
		}
		for i, m := range metrics {
			record[2+len(dims)+i] = strconv.FormatFloat(r.Metrics[m], 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
