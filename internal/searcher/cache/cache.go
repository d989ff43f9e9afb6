// Package cache keeps search results in Redis, keyed by the identity of the
// query that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache writing entries with the given TTL. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, q search.Query, limit int) (*executor.SearchResult, bool) {
	result, ok := c.load(ctx, Key(q, limit))
	if !ok {
		c.miss()
		return nil, false
	}
	c.hit(q)
	return result, true
}

// load reads and decodes an entry without touching the hit/miss counters.
func (c *QueryCache) load(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, q search.Query, limit int, result *executor.SearchResult) {
	key := Key(q, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

type computed struct {
	result *executor.SearchResult
	hit    bool
}

// GetOrCompute returns the cached result for q, or runs compute once for all
// concurrent callers asking for the same key and caches what it returns.
// The boolean reports a cache hit.
//
// compute sees ctx's values and deadline but not its cancellation; it is
// shared by every caller that joined the flight.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q search.Query,
	limit int,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, q, limit); ok {
		return result, true, nil
	}
	key := Key(q, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		computeCtx, cancel := detach(ctx)
		defer cancel()
		// A previous flight may have stored the entry after our Get.
		if result, ok := c.load(computeCtx, key); ok {
			c.hit(q)
			return computed{result: result, hit: true}, nil
		}
		result, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.Set(computeCtx, q, limit, result)
		return computed{result: result}, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := val.(computed)
	return out.result, out.hit, nil
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return detached, func() {}
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit(q search.Query) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", q.String())
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key identifies the results of q at limit. It covers the query's hash and
// its canonical string, so queries that differ only in their interval range
// or boost never share an entry.
func Key(q search.Query, limit int) string {
	raw := fmt.Sprintf("%016x|%s|limit=%d", q.Hash(), q.String(), limit)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
