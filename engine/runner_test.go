package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// RUNNER AND CACHE TESTS
// ============================================================================

func TestRunnerRunCaches(t *testing.T) {
	var mu sync.Mutex
	var lookups []bool

	runner := NewRunner(NewSliceView(hourlyFacts()), testMetadata,
		WithCache(NewResultCache(8, time.Minute, clockwork.NewFakeClock())),
		WithCacheObserver(func(hit bool) {
			mu.Lock()
			defer mu.Unlock()
			lookups = append(lookups, hit)
		}),
	)
	spec := daySpec("2025-01-08", "2025-01-08", []string{"dt", "city"}, "call_qty")

	first, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []bool{false, true}, lookups)

	spec.Metrics = []string{"call_qty", "connected_qty"}
	third, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestRunnerRunWithoutCache(t *testing.T) {
	runner := NewRunner(NewSliceView(hourlyFacts()), nil)
	spec := daySpec("2025-01-08", "2025-01-08", nil, "call_qty")

	first, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestRunnerRunPropagatesErrors(t *testing.T) {
	runner := NewRunner(NewSliceView(nil), nil)
	spec := daySpec("2025-01-08", "2025-01-08", nil, "call_qty")
	spec.Granularity = "fortnight"

	_, err := runner.Run(context.Background(), spec)
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestRunnerSubmitLatestWins(t *testing.T) {
	runner := NewRunner(NewSliceView(hourlyFacts()), nil)

	older := runner.Submit(context.Background(), daySpec("2025-01-07", "2025-01-07", nil, "call_qty"))
	newer := runner.Submit(context.Background(), daySpec("2025-01-08", "2025-01-08", nil, "call_qty"))

	assert.Equal(t, older.Generation+1, newer.Generation)
	assert.True(t, older.Stale())
	assert.False(t, newer.Stale())
	assert.NotEqual(t, older.ID, newer.ID)

	_, err := older.Wait(context.Background())
	assert.ErrorIs(t, err, ErrSuperseded)

	res, err := newer.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2025-01-08", res.Rows[0].BucketLabel)
	assert.Equal(t, uint64(2), runner.Generation())
}

// gatedView blocks the first Date read until release is closed, holding an
// execution in flight.
type gatedView struct {
	FactView
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedView(view FactView) *gatedView {
	return &gatedView{FactView: view, started: make(chan struct{}), release: make(chan struct{})}
}

func (v *gatedView) Date(i int) string {
	v.once.Do(func() {
		close(v.started)
		<-v.release
	})
	return v.FactView.Date(i)
}

func (r *Runner) waiters(spec QuerySpec) int {
	key, _ := SpecKey(spec)
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	if f, ok := r.flights[key]; ok {
		return f.waiters
	}
	return 0
}

func TestRunnerSharedRunSurvivesCallerCancel(t *testing.T) {
	view := newGatedView(NewSliceView(hourlyFacts()))
	runner := NewRunner(view, nil)
	spec := daySpec("2025-01-08", "2025-01-08", nil, "call_qty")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, spec)
		firstErr <- err
	}()
	<-view.started

	type outcome struct {
		res *Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := runner.Run(context.Background(), spec)
		second <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return runner.waiters(spec) == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.Equal(t, 1, runner.waiters(spec))

	close(view.release)
	out := <-second
	require.NoError(t, out.err)
	require.Len(t, out.res.Rows, 1)
	assert.Equal(t, "2025-01-08", out.res.Rows[0].BucketLabel)
}

func TestRunnerSubmitSameSpecLatestWins(t *testing.T) {
	view := newGatedView(NewSliceView(hourlyFacts()))
	runner := NewRunner(view, nil)
	spec := daySpec("2025-01-08", "2025-01-08", nil, "call_qty")

	older := runner.Submit(context.Background(), spec)
	<-view.started
	newer := runner.Submit(context.Background(), spec)
	close(view.release)

	_, err := older.Wait(context.Background())
	assert.ErrorIs(t, err, ErrSuperseded)

	res, err := newer.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2025-01-08", res.Rows[0].BucketLabel)
}

func TestRunnerAbandonedRunIsForgotten(t *testing.T) {
	view := newGatedView(NewSliceView(hourlyFacts()))
	runner := NewRunner(view, nil)
	spec := daySpec("2025-01-08", "2025-01-08", nil, "call_qty")

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, spec)
		errs <- err
	}()
	<-view.started

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, 0, runner.waiters(spec))

	close(view.release)
	res, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestHandleCancel(t *testing.T) {
	runner := NewRunner(NewSliceView(hourlyFacts()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := runner.Submit(ctx, daySpec("2025-01-08", "2025-01-08", nil, "call_qty"))
	<-h.Done()

	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultCacheTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(4, time.Minute, clock)
	res := &Result{QueryID: "q1"}

	cache.Put("k", res)
	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Same(t, res, got)

	clock.Advance(2 * time.Minute)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestResultCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewResultCache(2, time.Hour, clockwork.NewFakeClock())
	cache.Put("a", &Result{QueryID: "a"})
	cache.Put("b", &Result{QueryID: "b"})

	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Put("c", &Result{QueryID: "c"})

	_, ok = cache.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestSpecKey(t *testing.T) {
	a, err := SpecKey(daySpec("2025-01-08", "2025-01-08", []string{"city"}, "call_qty"))
	require.NoError(t, err)
	b, err := SpecKey(daySpec("2025-01-08", "2025-01-08", []string{"city"}, "call_qty"))
	require.NoError(t, err)
	c, err := SpecKey(daySpec("2025-01-08", "2025-01-08", []string{"supplier"}, "call_qty"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
