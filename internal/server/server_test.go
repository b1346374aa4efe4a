package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hackerer/sql-builder-BI-sub000/catalog"
	"github.com/Hackerer/sql-builder-BI-sub000/engine"
	"github.com/Hackerer/sql-builder-BI-sub000/facts"
	"github.com/Hackerer/sql-builder-BI-sub000/timeframe"
)

func testFacts() []engine.FactRow {
	row := func(date string, hour int, city string, calls float64) engine.FactRow {
		return engine.FactRow{
			Date:       date,
			Hour:       hour,
			Dimensions: map[string]string{"city": city},
			Metrics:    map[string]float64{"call_qty": calls},
		}
	}
	return []engine.FactRow{
		row("2025-01-07", 9, "北京", 80),
		row("2025-01-08", 9, "北京", 60),
		row("2025-01-08", 14, "北京", 40),
		row("2025-01-08", 9, "上海", 10),
	}
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	store := facts.NewStore(testFacts(), catalog.Default())
	cfg := Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		Runner: engine.NewRunner(store.View(), store.Catalog(),
			engine.WithCache(engine.NewResultCache(8, time.Minute, clockwork.NewFakeClock()))),
		Version:      "test",
		QueryTimeout: 5 * time.Second,
		Clock:        clockwork.NewFakeClock(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func querySpec() engine.QuerySpec {
	return engine.QuerySpec{
		Dims:        []string{"dt", "city"},
		Metrics:     []string{"call_qty"},
		DateRange:   timeframe.DateRange{StartDate: "2025-01-08", EndDate: "2025-01-08"},
		Granularity: timeframe.GranularityDay,
		Comparison:  engine.ComparisonConfig{Type: timeframe.ComparisonPeriod},
	}
}

// ============================================================================
// ENDPOINT TESTS
// ============================================================================

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestCatalogEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Catalog  catalog.Catalog     `json:"catalog"`
		Rows     int                 `json:"rows"`
		DateSpan timeframe.DateRange `json:"dateSpan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Rows)
	assert.Equal(t, "话务分析", resp.Catalog.Name)
	assert.Equal(t, timeframe.DateRange{StartDate: "2025-01-07", EndDate: "2025-01-08"}, resp.DateSpan)
}

func TestComparisonTypesEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/comparison-types?granularity=day", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	options := decodeBody[[]ComparisonOption](t, rec)
	require.Len(t, options, 4)
	assert.Equal(t, ComparisonOption{Type: timeframe.ComparisonNone, Label: "无对比"}, options[0])
	assert.Equal(t, ComparisonOption{Type: timeframe.ComparisonPeriod, Label: "日环比 (昨日)"}, options[1])

	rec = do(t, s, http.MethodGet, "/api/comparison-types?granularity=quarter", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_granularity", decodeBody[ErrorResponse](t, rec).Error)
}

func TestComparisonRangeEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/comparison-range", ComparisonRangeRequest{
		DateRange:   timeframe.DateRange{StartDate: "2025-03-31", EndDate: "2025-03-31"},
		Granularity: timeframe.GranularityDay,
		Type:        timeframe.ComparisonMonth,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ComparisonRangeResponse](t, rec)
	assert.Equal(t, timeframe.DateRange{StartDate: "2025-02-28", EndDate: "2025-02-28"}, resp.DateRange)
	assert.Equal(t, "月同比 (上月同期)", resp.Label)

	rec = do(t, s, http.MethodPost, "/api/comparison-range", `{"dateRange":{"startDate":"2025-02-01","endDate":"2025-01-01"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/query", QueryRequest{Generation: 7, Spec: querySpec()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Generation uint64 `json:"generation"`
		Result     struct {
			Rows            []map[string]any    `json:"rows"`
			Series          []map[string]any    `json:"series"`
			ComparisonRange timeframe.DateRange `json:"comparisonRange"`
			ComparisonLabel string              `json:"comparisonLabel"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, uint64(7), resp.Generation)
	assert.Equal(t, "日环比 (昨日)", resp.Result.ComparisonLabel)
	assert.Equal(t, timeframe.DateRange{StartDate: "2025-01-07", EndDate: "2025-01-07"}, resp.Result.ComparisonRange)
	require.Len(t, resp.Result.Rows, 1)
	row := resp.Result.Rows[0]
	assert.Equal(t, 100.0, row["北京_call_qty"])
	assert.Equal(t, 80.0, row["北京_call_qty_comp"])
	assert.Equal(t, 25.0, row["北京_call_qty_rate"])
	assert.Equal(t, 10.0, row["上海_call_qty"])
	assert.Len(t, resp.Result.Series, 2)
}

func TestQueryEndpointRejectsInvalidSelections(t *testing.T) {
	s := newTestServer(t, nil)

	spec := querySpec()
	spec.Metrics = []string{"revenue"}
	rec := do(t, s, http.MethodPost, "/api/query", QueryRequest{Spec: spec})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_query", body.Error)
	assert.Contains(t, body.Message, "revenue")

	rec = do(t, s, http.MethodPost, "/api/query", `{"spec": {"dims": [}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decodeBody[ErrorResponse](t, rec).Error)

	rec = do(t, s, http.MethodPost, "/api/query", `{"spec": {}, "extra": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.RateLimitRPS = 0.1
		c.RateLimitBurst = 1
	})

	rec := do(t, s, http.MethodPost, "/api/query", QueryRequest{Spec: querySpec()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/query", QueryRequest{Spec: querySpec()})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeBody[ErrorResponse](t, rec).Error)

	// Other endpoints are not limited.
	rec = do(t, s, http.MethodGet, "/api/catalog", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/healthz", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bi_http_requests_total")
	assert.Contains(t, rec.Body.String(), "bi_fact_rows")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"https://bi.example"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "https://bi.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://bi.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.ListenAddr = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// ============================================================================
// RATE LIMITER
// ============================================================================

func TestRateLimiterRefillsAndSweeps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(1, 1, clock)

	ok, _ := rl.AllowWithRetry("a")
	assert.True(t, ok)
	ok, retry := rl.AllowWithRetry("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	ok, _ = rl.AllowWithRetry("b")
	assert.True(t, ok, "clients are limited independently")

	clock.Advance(time.Second)
	ok, _ = rl.AllowWithRetry("a")
	assert.True(t, ok)

	assert.Equal(t, 2, rl.Len())
	clock.Advance(10 * time.Minute)
	rl.Sweep()
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, clockwork.NewFakeClock())
	for i := 0; i < 100; i++ {
		ok, _ := rl.AllowWithRetry("a")
		require.True(t, ok)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:5555"
	assert.Equal(t, "192.0.2.9", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "192.0.2.9", clientIP(req), "headers are left to middleware.RealIP")

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", clientIP(req))
}

func TestRateLimiterIgnoresForwardedHeaders(t *testing.T) {
	rl := NewRateLimiter(0.1, 1, clockwork.NewFakeClock())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiterClampsBurst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(1, 0, clock)

	ok, _ := rl.AllowWithRetry("a")
	assert.True(t, ok)
	ok, retry := rl.AllowWithRetry("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	clock.Advance(time.Second)
	ok, _ = rl.AllowWithRetry("a")
	assert.True(t, ok)
}
