// Package gateway serves calendar months to views: it answers from the
// month cache when it can, coalesces concurrent fetches of the same month,
// and retries failed backend calls with exponential backoff.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"entcal/internal/backend"
	"entcal/internal/cache"
	appLog "entcal/internal/log"
	"entcal/internal/metrics"
	"entcal/internal/model"
)

// ErrFetchFailed wraps the last backend error once retries are exhausted.
var ErrFetchFailed = errors.New("calendar fetch failed")

// MonthCache is the cache type the gateway reads through.
type MonthCache = cache.Cache[model.Key, model.DayMap]

// NewMonthCache constructs the month cache.
func NewMonthCache(opts cache.Options) *MonthCache {
	return cache.New[model.Key, model.DayMap](opts)
}

// Options configures a Gateway.
type Options struct {
	Retry RetryPolicy
	// Dedupe coalesces concurrent loads of the same key into one fetch.
	Dedupe bool
}

// Result is a successfully loaded month.
type Result struct {
	Key       model.Key
	Days      model.DayMap
	FetchedAt time.Time
	// FromCache is set when no fetch was awaited for this result.
	FromCache bool
	// Stale is set when the cached value was past its TTL; a background
	// refresh has been started.
	Stale bool
}

// call is one in-flight fetch shared by its waiters.
type call struct {
	done    chan struct{}
	gen     uint64
	waiters int

	days      model.DayMap
	fetchedAt time.Time
	err       error
}

// Gateway is safe for concurrent use. Close stops background refreshes.
type Gateway struct {
	src   backend.Source
	cache *MonthCache
	opts  Options

	// ctx outlives individual callers so a fetch shared by several
	// waiters is not failed when the first of them gives up.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[model.Key]*call
}

// New wires a gateway over src and c.
func New(src backend.Source, c *MonthCache, opts Options) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		src:      src,
		cache:    c,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[model.Key]*call),
	}
}

// Cache exposes the underlying month cache.
func (g *Gateway) Cache() *MonthCache {
	return g.cache
}

// Month loads the month containing cursor for the given entity.
func (g *Gateway) Month(ctx context.Context, kind model.EntityKind, entityID string, cursor time.Time) (Result, error) {
	return g.Load(ctx, model.KeyFor(kind, entityID, cursor))
}

// Load returns the month for key. Fresh cache hits return immediately;
// stale hits return immediately and refresh in the background; misses
// wait for a (possibly shared) fetch or for ctx to end.
func (g *Gateway) Load(ctx context.Context, key model.Key) (Result, error) {
	days, fetchedAt, state := g.cache.Get(key)
	switch state {
	case cache.Fresh:
		return Result{Key: key, Days: days, FetchedAt: fetchedAt, FromCache: true}, nil
	case cache.Stale:
		g.startFetch(key, false)
		return Result{Key: key, Days: days, FetchedAt: fetchedAt, FromCache: true, Stale: true}, nil
	}
	return g.wait(ctx, key, g.startFetch(key, true))
}

// Refresh fetches key from the backend regardless of cache state, joining
// a fetch already in flight.
func (g *Gateway) Refresh(ctx context.Context, key model.Key) (Result, error) {
	return g.wait(ctx, key, g.startFetch(key, true))
}

// Waiters reports how many callers are waiting on the in-flight fetch
// for key, or 0 when none is running.
func (g *Gateway) Waiters(key model.Key) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.inflight[key]; ok {
		return c.waiters
	}
	return 0
}

// Close cancels background fetches and waits for them to finish.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

func (g *Gateway) wait(ctx context.Context, key model.Key, c *call) (Result, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		g.mu.Unlock()
		return Result{}, ctx.Err()
	}
	if c.err != nil {
		return Result{}, c.err
	}
	return Result{Key: key, Days: c.days, FetchedAt: c.fetchedAt}, nil
}

// startFetch joins or starts the fetch for key. waiting callers are
// counted in the call's waiter total; background refreshes are not.
func (g *Gateway) startFetch(key model.Key, waiting bool) *call {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.opts.Dedupe {
		if c, ok := g.inflight[key]; ok {
			if waiting {
				c.waiters++
				metrics.FetchesCoalesced.Inc()
			}
			return c
		}
	}

	c := &call{done: make(chan struct{}), gen: g.cache.Begin(key)}
	if waiting {
		c.waiters = 1
	}
	if g.opts.Dedupe {
		g.inflight[key] = c
	}

	g.wg.Add(1)
	go g.run(key, c)
	return c
}

func (g *Gateway) run(key model.Key, c *call) {
	defer g.wg.Done()

	days, err := g.fetchWithRetry(g.ctx, key)
	if err == nil {
		if !g.cache.Commit(key, c.gen, days) {
			appLog.Debug("gateway: superseded fetch not cached", "key", key.String(), "gen", c.gen)
		}
	} else {
		g.cache.Release(key, c.gen)
	}

	g.mu.Lock()
	c.days, c.err, c.fetchedAt = days, err, time.Now()
	if g.inflight[key] == c {
		delete(g.inflight, key)
	}
	g.mu.Unlock()
	close(c.done)
}

func (g *Gateway) fetchWithRetry(ctx context.Context, key model.Key) (model.DayMap, error) {
	kind := string(key.Kind)
	for attempt := 0; ; attempt++ {
		start := time.Now()
		days, err := g.src.FetchMonth(ctx, key)
		metrics.BackendFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.BackendFetches.WithLabelValues(kind, "success").Inc()
			return days, nil
		}

		if errors.Is(err, model.ErrUnparseablePayload) {
			metrics.BackendFetches.WithLabelValues(kind, "unparseable").Inc()
			appLog.Error("gateway: unparseable payload", err, "key", key.String())
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		metrics.BackendFetches.WithLabelValues(kind, "error").Inc()

		if attempt >= g.opts.Retry.MaxRetries || !retryable(err) {
			appLog.Error("gateway: fetch failed", err, "key", key.String(), "attempts", attempt+1)
			return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrFetchFailed, key, attempt+1, err)
		}

		delay := g.opts.Retry.Backoff(attempt)
		appLog.Warn("gateway: fetch failed, retrying", "key", key.String(), "attempt", attempt+1, "delay", delay, "err", err)
		metrics.FetchRetries.Inc()
		if serr := sleep(ctx, delay); serr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, key, serr)
		}
	}
}
