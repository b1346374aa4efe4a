package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Development, c.Environment)
	assert.Equal(t, LogLevelInfo, c.LogLevel)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 20, c.MaxSeries)
	assert.Equal(t, 5*time.Minute, c.CacheTTL())
	assert.Equal(t, 30*time.Second, c.QueryTimeout())
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, uint64(42), c.GenerateSeed)
	assert.True(t, c.IsDevelopment())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BI_ENV", Production)
	t.Setenv("BI_ADDR", ":9090")
	t.Setenv("BI_MAX_SERIES", "5")
	t.Setenv("BI_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BI_RATE_LIMIT_RPS", "2.5")

	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, 5, c.MaxSeries)
	assert.Equal(t, 2.5, c.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\ncachesize: 4\nloglevel: debug\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Addr)
	assert.Equal(t, 4, c.CacheSize)
	assert.Equal(t, LogLevelDebug, c.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("BI_ENV", "staging")
	t.Setenv("BI_LOG_LEVEL", "chatty")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid environment: staging")
	assert.Contains(t, err.Error(), "invalid log level: chatty")
}

func TestLoadRejectsZeroBurst(t *testing.T) {
	t.Setenv("BI_RATE_LIMIT_RPS", "5")
	t.Setenv("BI_RATE_LIMIT_BURST", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit burst must be at least 1")

	t.Setenv("BI_RATE_LIMIT_RPS", "0")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.RateLimitBurst)
}

func TestGetConfigIsCached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("BI_ADDR", ":1111")
	first := GetConfig()
	t.Setenv("BI_ADDR", ":2222")
	assert.Same(t, first, GetConfig())
	assert.Equal(t, ":1111", GetConfig().Addr)
}
