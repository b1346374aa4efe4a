package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Hackerer/sql-builder-BI-sub000/engine"
)

// ============================================================================
// RESULT OUTPUT
// ============================================================================

func writeResult(w io.Writer, result *engine.Result, format string) error {
	switch format {
	case "csv":
		return writeCSV(w, result)
	case "text":
		return writeText(w, result)
	case "json", "pretty":
		return writeJSON(w, result, format)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// writeCSV writes the flattened table with its display headers, ready for
// Sheets or Excel.
func writeCSV(w io.Writer, result *engine.Result) error {
	cw := csv.NewWriter(w)

	headers := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		headers[i] = c.Header
	}
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, row := range engine.FormatTable(result.Columns, result.Table) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, result *engine.Result) error {
	fmt.Fprintln(w, result.Summary)
	for _, c := range result.Columns {
		if c.Type != engine.ColumnMetric {
			continue
		}
		if total, ok := result.Totals[c.Key]; ok {
			fmt.Fprintf(w, "合计 %s: %s\n", c.Header, strconv.FormatFloat(total, 'f', -1, 64))
		}
	}
	if result.ComparisonRange != nil {
		fmt.Fprintf(w, "%s: %s\n", result.ComparisonLabel, result.ComparisonRange)
	}
	if result.SeriesLimited {
		fmt.Fprintf(w, "仅显示前 %d 个系列\n", len(result.Series))
	}
	if len(result.Table) == 0 {
		fmt.Fprintln(w, "无数据")
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		headers[i] = c.Header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range engine.FormatTable(result.Columns, result.Table) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(out))
	return err
}
