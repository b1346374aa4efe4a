package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/facts"
	"github.com/Hackerer/sql-builder-BI-sub000/internal/config"
	"github.com/Hackerer/sql-builder-BI-sub000/internal/logger"
	"github.com/Hackerer/sql-builder-BI-sub000/internal/metrics"
	"github.com/Hackerer/sql-builder-BI-sub000/internal/server"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

// ============================================================================
// BI CLI — Multi-dimensional queries over call-center facts
// ============================================================================

var version = "0.1.0"

const usage = `bi: aggregate fact data by time bucket and dimension combination

Usage:
  bi query      --spec query.json [--data facts.csv] [--catalog catalog.yaml] [--format json|pretty|csv|text]
  bi serve      [--addr :8080] [--data facts.csv] [--catalog catalog.yaml]
  bi generate   [--start 2025-01-01] [--days 30] [--seed 42] [--out facts.csv]
  bi catalog    [--data facts.csv] [--format yaml|json|pretty]
  bi comparison --granularity day --type period --start 2025-01-08 [--end 2025-01-08]
  bi version

Without --data, commands run against a generated demo dataset.

Environment (also read from .env):
  BI_ADDR, BI_DATA_PATH, BI_CATALOG_PATH, BI_LOG_LEVEL, BI_LOG_FILE,
  BI_MAX_SERIES, BI_CACHE_SIZE, BI_CACHE_TTL_SECONDS, BI_RATE_LIMIT_RPS, ...

Run "bi <command> --help" for command flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("a command is required")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "query":
		return runQuery(rest, stdout)
	case "serve":
		return runServe(rest)
	case "generate":
		return runGenerate(rest, stdout)
	case "catalog":
		return runCatalog(rest, stdout)
	case "comparison":
		return runComparison(rest, stdout)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "bi %s\n", version)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// ============================================================================
// SHARED FLAGS
// ============================================================================

type commonFlags struct {
	configPath  *string
	dataPath    *string
	catalogPath *string
	verbose     *bool
}

func addCommonFlags(flags *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath:  flags.String("config", os.Getenv("BI_CONFIG"), "Path to a YAML/JSON/TOML config file"),
		dataPath:    flags.String("data", "", "Path to a CSV or JSON fact file (default: generated demo data)"),
		catalogPath: flags.String("catalog", "", "Path to a YAML catalog (default: built-in, or discovered from --data)"),
		verbose:     flags.Bool("verbose", false, "Enable debug logging"),
	}
}

// setup loads configuration and builds the logger. Flags override config.
func (c commonFlags) setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if *c.dataPath != "" {
		cfg.DataPath = *c.dataPath
	}
	if *c.catalogPath != "" {
		cfg.CatalogPath = *c.catalogPath
	}
	if *c.verbose {
		cfg.LogLevel = config.LogLevelDebug
	}

	log, closer := logger.New(logger.Options{
		Level:        string(cfg.LogLevel),
		File:         cfg.LogFile,
		MaxSizeInMb:  cfg.LogsMaxSizeInMb,
		MaxBackups:   cfg.LogsMaxBackups,
		MaxAgeInDays: cfg.LogsMaxAgeInDays,
	})
	return cfg, log, closer, nil
}

// loadStore reads the configured fact file, or generates demo data when none
// is configured.
func loadStore(cfg *config.Config, log *slog.Logger) (*facts.Store, error) {
	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		c, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = c
		log.Debug("catalog loaded", "name", cat.Name, "dimensions", len(cat.Dimensions), "metrics", len(cat.Metrics))
	}

	if cfg.DataPath != "" {
		store, err := facts.LoadFile(cfg.DataPath, cat)
		if err != nil {
			return nil, err
		}
		log.Info("facts loaded", "path", cfg.DataPath, "rows", store.Len(), "catalog", store.Catalog().Name)
		return store, nil
	}

	if cat == nil {
		cat = catalog.Default()
	}
	rows, err := facts.Generate(facts.GenerateOptions{
		Start:   cfg.GenerateStart,
		Days:    cfg.GenerateDays,
		Seed:    cfg.GenerateSeed,
		Catalog: cat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate demo data: %w", err)
	}
	log.Info("demo facts generated", "start", cfg.GenerateStart, "days", cfg.GenerateDays, "rows", len(rows))
	return facts.NewStore(rows, cat), nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// ============================================================================
// COMMANDS
// ============================================================================

func runQuery(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	common := addCommonFlags(flags)
	specPath := flags.String("spec", "", "Path to a JSON query spec, or - for stdin (required)")
	format := flags.String("format", "json", "Output format: json, pretty, csv, text")
	outFile := flags.String("out", "", "Write output to file instead of stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *specPath == "" {
		return errors.New("--spec is required")
	}

	cfg, log, closer, err := common.setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	spec, err := readSpec(*specPath)
	if err != nil {
		return err
	}

	store, err := loadStore(cfg, log)
	if err != nil {
		return err
	}
	if err := store.Catalog().Validate(spec); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	ctx := context.Background()
	if cfg.QueryTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout())
		defer cancel()
	}

	result, err := engine.Execute(ctx, spec, store.View(), store.Catalog(),
		engine.WithLogger(log),
		engine.WithMaxSeries(cfg.MaxSeries),
	)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	w, done, err := openOutput(*outFile, stdout)
	if err != nil {
		return err
	}
	if err := writeResult(w, result, *format); err != nil {
		_ = done()
		return err
	}
	if err := done(); err != nil {
		return err
	}
	if *outFile != "" {
		log.Info("result written", "path", *outFile, "format", *format)
	}
	return nil
}

func readSpec(path string) (engine.QuerySpec, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return engine.QuerySpec{}, fmt.Errorf("failed to read spec: %w", err)
	}

	var spec engine.QuerySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return engine.QuerySpec{}, fmt.Errorf("failed to parse spec JSON: %w", err)
	}
	return spec, nil
}

func runServe(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := addCommonFlags(flags)
	addr := flags.String("addr", "", "Listen address (default from BI_ADDR or :8080)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, log, closer, err := common.setup()
	if err != nil {
		return err
	}
	defer closer.Close()
	if *addr != "" {
		cfg.Addr = *addr
	}

	store, err := loadStore(cfg, log)
	if err != nil {
		return err
	}

	runnerOpts := []engine.RunnerOption{
		engine.WithRunnerLogger(log),
		engine.WithEngineOptions(engine.WithLogger(log), engine.WithMaxSeries(cfg.MaxSeries)),
		engine.WithCacheObserver(metrics.RecordCacheLookup),
	}
	if cfg.CacheSize > 0 {
		runnerOpts = append(runnerOpts, engine.WithCache(engine.NewResultCache(cfg.CacheSize, cfg.CacheTTL(), nil)))
	}

	srv, err := server.New(server.Config{
		Logger:         log,
		Store:          store,
		Runner:         engine.NewRunner(store.View(), store.Catalog(), runnerOpts...),
		Version:        version,
		ListenAddr:     cfg.Addr,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		QueryTimeout:   cfg.QueryTimeout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func runGenerate(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("generate", flag.ContinueOnError)
	common := addCommonFlags(flags)
	start := flags.String("start", "", "First date, YYYY-MM-DD (default from config)")
	days := flags.Int("days", 0, "Number of days (default from config)")
	seed := flags.Uint64("seed", 0, "Random seed (default from config)")
	outFile := flags.String("out", "", "Write CSV to file instead of stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, log, closer, err := common.setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := facts.GenerateOptions{Start: cfg.GenerateStart, Days: cfg.GenerateDays, Seed: cfg.GenerateSeed}
	if *start != "" {
		opts.Start = *start
	}
	if *days > 0 {
		opts.Days = *days
	}
	if flags.Changed("seed") {
		opts.Seed = *seed
	}
	if cfg.CatalogPath != "" {
		if opts.Catalog, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return err
		}
	} else {
		opts.Catalog = catalog.Default()
	}

	rows, err := facts.Generate(opts)
	if err != nil {
		return err
	}

	w, done, err := openOutput(*outFile, stdout)
	if err != nil {
		return err
	}
	if err := facts.WriteCSV(w, rows, opts.Catalog); err != nil {
		_ = done()
		return err
	}
	log.Info("demo facts generated", "rows", len(rows), "start", opts.Start, "days", opts.Days, "seed", opts.Seed)
	return done()
}

func runCatalog(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("catalog", flag.ContinueOnError)
	common := addCommonFlags(flags)
	format := flags.String("format", "yaml", "Output format: yaml, json, pretty")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, log, closer, err := common.setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	var cat *catalog.Catalog
	switch {
	case cfg.DataPath != "":
		store, err := loadStore(cfg, log)
		if err != nil {
			return err
		}
		cat = store.Catalog()
		log.Info("catalog discovered", "dimensions", len(cat.Dimensions), "metrics", len(cat.Metrics), "skipped", len(cat.Skipped))
	case cfg.CatalogPath != "":
		if cat, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return err
		}
	default:
		cat = catalog.Default()
	}

	if *format == "yaml" {
		out, err := cat.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		_, err = stdout.Write(out)
		return err
	}
	return writeJSON(stdout, cat, *format)
}

func runComparison(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("comparison", flag.ContinueOnError)
	granularity := flags.String("granularity", string(timeframe.GranularityDay), "Granularity: hour, day, week, month")
	compType := flags.String("type", string(timeframe.ComparisonPeriod), "Comparison type: none, period, day, week, month")
	start := flags.String("start", "", "Range start, YYYY-MM-DD (required)")
	end := flags.String("end", "", "Range end, YYYY-MM-DD (default: start)")
	format := flags.String("format", "text", "Output format: text, json, pretty")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *end == "" {
		*end = *start
	}

	r := timeframe.DateRange{StartDate: *start, EndDate: *end}
	if err := r.Validate(); err != nil {
		return err
	}
	g := timeframe.Granularity(*granularity)
	t := timeframe.ComparisonType(*compType)

	out := comparisonOutput{
		DateRange:  r,
		Comparison: timeframe.ComparisonRange(r, g, t),
		Label:      timeframe.ComparisonLabel(t, g),
		Offered:    timeframe.IsValidComparison(g, t),
	}
	if *format == "text" {
		fmt.Fprintf(stdout, "%s → %s  %s\n", out.DateRange, out.Comparison, out.Label)
		return nil
	}
	return writeJSON(stdout, out, *format)
}

type comparisonOutput struct {
	DateRange  timeframe.DateRange `json:"dateRange"`
	Comparison timeframe.DateRange `json:"comparisonRange"`
	Label      string              `json:"label"`
	Offered    bool                `json:"offered"`
}
