// Package config provides configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	Addr        string   `mapstructure:"addr"`

	// Data sources
	DataPath    string `mapstructure:"datapath"`
	CatalogPath string `mapstructure:"catalogpath"`

	// Logging settings
	LogFile          string `mapstructure:"logfile"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Engine settings
	MaxSeries           int `mapstructure:"maxseries"`
	CacheSize           int `mapstructure:"cachesize"`
	CacheTTLSeconds     int `mapstructure:"cachettlseconds"`
	QueryTimeoutSeconds int `mapstructure:"querytimeoutseconds"`

	// HTTP settings
	RateLimitRPS   float64  `mapstructure:"ratelimitrps"`
	RateLimitBurst int      `mapstructure:"ratelimitburst"`
	CORSOrigins    []string `mapstructure:"corsorigins"`

	// Demo data generator
	GenerateStart string `mapstructure:"generatestart"`
	GenerateDays  int    `mapstructure:"generatedays"`
	GenerateSeed  uint64 `mapstructure:"generateseed"`
}

// envBindings maps config keys to environment variables.
var envBindings = map[string]string{
	"environment":         "BI_ENV",
	"loglevel":            "BI_LOG_LEVEL",
	"addr":                "BI_ADDR",
	"datapath":            "BI_DATA_PATH",
	"catalogpath":         "BI_CATALOG_PATH",
	"logfile":             "BI_LOG_FILE",
	"logsmaxsizeinmb":     "BI_LOGS_MAX_SIZE_IN_MB",
	"logsmaxbackups":      "BI_LOGS_MAX_BACKUPS",
	"logsmaxageindays":    "BI_LOGS_MAX_AGE_IN_DAYS",
	"maxseries":           "BI_MAX_SERIES",
	"cachesize":           "BI_CACHE_SIZE",
	"cachettlseconds":     "BI_CACHE_TTL_SECONDS",
	"querytimeoutseconds": "BI_QUERY_TIMEOUT_SECONDS",
	"ratelimitrps":        "BI_RATE_LIMIT_RPS",
	"ratelimitburst":      "BI_RATE_LIMIT_BURST",
	"corsorigins":         "BI_CORS_ORIGINS",
	"generatestart":       "BI_GENERATE_START",
	"generatedays":        "BI_GENERATE_DAYS",
	"generateseed":        "BI_GENERATE_SEED",
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration, loading it on first use.
// An invalid configuration is fatal.
func GetConfig() *Config {
	once.Do(func() {
		c, err := Load("")
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	})
	return cfg
}

// Reset drops the cached configuration. Tests use it between cases.
func Reset() {
	once = sync.Once{}
	cfg = nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelInfo))
	v.SetDefault("addr", ":8080")
	v.SetDefault("datapath", "")
	v.SetDefault("catalogpath", "")
	v.SetDefault("logfile", "")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("maxseries", 20)
	v.SetDefault("cachesize", 128)
	v.SetDefault("cachettlseconds", 300)
	v.SetDefault("querytimeoutseconds", 30)
	v.SetDefault("ratelimitrps", 10.0)
	v.SetDefault("ratelimitburst", 20)
	v.SetDefault("corsorigins", []string{"*"})
	v.SetDefault("generatestart", "2025-01-01")
	v.SetDefault("generatedays", 30)
	v.SetDefault("generateseed", 42)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads defaults, an optional YAML/JSON/TOML config file and BI_*
// environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.CORSOrigins = splitOrigins(c.CORSOrigins)

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// splitOrigins accepts both list values and a comma-separated env string.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	var errs []error

	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.LogLevel))
	}

	if c.MaxSeries < 1 {
		errs = append(errs, fmt.Errorf("max series must be positive: %d", c.MaxSeries))
	}
	if c.CacheSize < 0 || c.CacheTTLSeconds < 0 {
		errs = append(errs, errors.New("cache size and TTL must not be negative"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	} else if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("rate limit burst must be at least 1 when rps is set: %d", c.RateLimitBurst))
	}
	if c.GenerateDays < 1 {
		errs = append(errs, fmt.Errorf("generate days must be positive: %d", c.GenerateDays))
	}

	return errors.Join(errs...)
}

// CacheTTL returns the result cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// QueryTimeout returns the per-query deadline. Zero means none.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}
