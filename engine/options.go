package engine

import (
	"io"
	"log/slog"

	"golang.org/x/text/language"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute() and Runner
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Logger    *slog.Logger
	MaxSeries int          // series beyond this are dropped and flagged
	MaxCombos int          // combinations generated per query, at most MaxCombinations
	Palette   []string     // series colours, cycled per combination
	Language  language.Tag // number formatting of table cells
	ChartType string       // chart type of Result.Chart
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMaxSeries overrides the series cap. Values below one are ignored.
func WithMaxSeries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.MaxSeries = n
		}
	}
}

// WithMaxCombinations lowers the number of dimension combinations generated
// per query. Values outside 1..MaxCombinations are ignored.
func WithMaxCombinations(n int) Option {
	return func(c *config) {
		if n > 0 && n <= MaxCombinations {
			c.MaxCombos = n
		}
	}
}

// WithPalette replaces the default colour palette.
func WithPalette(colors []string) Option {
	return func(c *config) {
		if len(colors) > 0 {
			c.Palette = colors
		}
	}
}

// WithNumberLanguage sets the locale used to format table numbers.
func WithNumberLanguage(tag language.Tag) Option {
	return func(c *config) {
		c.Language = tag
	}
}

// WithChartType sets the chart type reported in Result.Chart ("line" by default).
func WithChartType(chartType string) Option {
	return func(c *config) {
		if chartType != "" {
			c.ChartType = chartType
		}
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxSeries: MaxSeries,
		MaxCombos: MaxCombinations,
		Palette:   defaultColors,
		Language:  language.SimplifiedChinese,
		ChartType: "line",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
