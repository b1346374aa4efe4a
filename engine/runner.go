package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ============================================================================
// RUNNER — Cancellable Executions, Latest Wins
// ============================================================================
// Execute is pure; Runner is what interactive callers use on top of it.
//
//   Run     synchronous; identical concurrent queries share one execution,
//           results are cached when a ResultCache is configured
//   Submit  asynchronous; every submission gets a new generation and
//           cancels the previous one, so only the newest result is applied
// ============================================================================

// ErrSuperseded is returned by Handle.Wait when a newer submission exists.
var ErrSuperseded = errors.New("query superseded by a newer submission")

// Runner executes queries against one fact view.
type Runner struct {
	view    FactView
	md      Metadata
	opts    []Option
	cache   *ResultCache
	logger  *slog.Logger
	onCache func(hit bool)
	group   singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*flight

	mu         sync.Mutex
	generation uint64
	inflight   *Handle
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCache enables result caching.
func WithCache(cache *ResultCache) RunnerOption {
	return func(r *Runner) { r.cache = cache }
}

// WithEngineOptions passes options through to every Execute call.
func WithEngineOptions(opts ...Option) RunnerOption {
	return func(r *Runner) { r.opts = append(r.opts, opts...) }
}

// WithRunnerLogger sets the runner logger. It is also handed to Execute.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCacheObserver is called with every cache lookup outcome.
func WithCacheObserver(fn func(hit bool)) RunnerOption {
	return func(r *Runner) { r.onCache = fn }
}

// NewRunner creates a Runner over view.
func NewRunner(view FactView, md Metadata, opts ...RunnerOption) *Runner {
	r := &Runner{
		view:   view,
		md:      md,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.opts = append([]Option{WithLogger(r.logger)}, r.opts...)
	return r
}

// Run executes spec, consulting the cache and sharing in-flight work with
// identical concurrent calls. The shared execution does not run on any one
// caller's context: a caller that gives up only stops waiting, and the
// execution is cancelled once every caller waiting on it has left.
func (r *Runner) Run(ctx context.Context, spec QuerySpec) (*Result, error) {
	key, err := SpecKey(spec)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		res, hit := r.cache.Get(key)
		if r.onCache != nil {
			r.onCache(hit)
		}
		if hit {
			return res, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := r.join(ctx, key)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		defer r.finish(key, f)
		res, err := Execute(f.ctx, spec, r.view, r.md, r.opts...)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.Put(key, res)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		r.leave(key, f, true)
		return nil, ctx.Err()
	case out := <-ch:
		r.leave(key, f, false)
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Shared {
			r.logger.Debug("shared in-flight query", slog.String("key", key))
		}
		return out.Val.(*Result), nil
	}
}

// ============================================================================
// SHARED EXECUTIONS
// ============================================================================

// flight is the context of one shared execution and the number of callers
// waiting on it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (r *Runner) join(ctx context.Context, key string) *flight {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()

	f, ok := r.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. When the last waiter abandons the execution it is
// cancelled and forgotten, so a later identical query starts afresh.
func (r *Runner) leave(key string, f *flight, abandoned bool) {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 || !abandoned {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
		r.group.Forget(key)
	}
}

// finish runs when the shared execution returns.
func (r *Runner) finish(key string, f *flight) {
	r.flightMu.Lock()
	if r.flights[key] == f {
		delete(r.flights, key)
	}
	r.flightMu.Unlock()
	f.cancel()
}

// Generation returns the generation of the most recent submission.
func (r *Runner) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Submit starts spec in the background and cancels any earlier submission
// still in flight.
func (r *Runner) Submit(ctx context.Context, spec QuerySpec) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.generation++
	h := &Handle{
		ID:         uuid.NewString(),
		Generation: r.generation,
		runner:     r,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	prev := r.inflight
	r.inflight = h
	r.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.result, h.err = r.Run(ctx, spec)

		r.mu.Lock()
		if r.inflight == h {
			r.inflight = nil
		}
		r.mu.Unlock()
	}()
	return h
}

// Handle tracks one submitted execution.
type Handle struct {
	ID         string
	Generation uint64

	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// Done is closed when the execution finishes, successfully or not.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel aborts the execution if it is still running.
func (h *Handle) Cancel() { h.cancel() }

// Stale reports whether a newer submission has been made on the runner.
func (h *Handle) Stale() bool { return h.runner.Generation() != h.Generation }

// Wait blocks until the execution finishes. A superseded execution returns
// ErrSuperseded even if it completed, so callers never apply a stale result.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}
	if h.Stale() {
		return nil, ErrSuperseded
	}
	return h.result, h.err
}
