package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/periodsum"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/resilience"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	lastTTL time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.lastTTL = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func query(t *testing.T, start, end int64) search.Query {
	t.Helper()
	q, err := periodsum.New(search.NewTermQuery("text", "contract"), interval.Range{Start: start, End: end})
	require.NoError(t, err)
	return q
}

func result(score float64) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "q",
		TotalHits: 1,
		MaxScore:  score,
		Results:   []executor.ScoredDoc{{DocID: "first", Score: score}},
	}
}

func TestKeyDistinguishesRangesAndLimits(t *testing.T) {
	a := Key(query(t, 0, 13), 10)
	assert.True(t, strings.HasPrefix(a, keyPrefix))
	assert.Equal(t, a, Key(query(t, 0, 13), 10))
	assert.NotEqual(t, a, Key(query(t, 10, 600), 10))
	assert.NotEqual(t, a, Key(query(t, 0, 13), 20))
	assert.NotEqual(t, a, Key(query(t, 0, 13).WithBoost(2), 10))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := newMemStore()
	c := New(store, time.Minute, m)
	q := query(t, 0, 13)

	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return result(5), nil
	}
	first, hit, err := c.GetOrCompute(context.Background(), q, 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := c.GetOrCompute(context.Background(), q, 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, store.lastTTL)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	q := query(t, 0, 13)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), q, 10, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), q, 10)
	assert.False(t, ok)
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	q := query(t, 0, 13)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result(5), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), q, 10, compute)
			assert.NoError(t, err)
			assert.Equal(t, 5.0, res.MaxScore)
		}()
	}
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	_, ok := c.Get(context.Background(), q, 10)
	assert.True(t, ok)
}

func TestStoreErrorsAreMisses(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	_, ok := c.Get(context.Background(), query(t, 0, 13), 10)
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	store := newMemStore()
	q := query(t, 0, 13)
	store.data[Key(q, 10)] = []byte("{not json")
	c := New(store, time.Minute, nil)
	_, ok := c.Get(context.Background(), q, 10)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other"] = []byte("keep")
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), query(t, 0, 13), 10, result(5))
	c.Set(context.Background(), query(t, 10, 600), 10, result(100))

	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Len(t, store.data, 1)
}

func TestGetOrComputeIgnoresCallerCancellation(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	q := query(t, 0, 13)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, hit, err := c.GetOrCompute(ctx, q, 10, func(ctx context.Context) (*executor.SearchResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return result(5), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5.0, res.MaxScore)
}

func TestGetOrComputeKeepsCallerDeadline(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	deadline := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	_, _, err := c.GetOrCompute(ctx, query(t, 0, 13), 10, func(ctx context.Context) (*executor.SearchResult, error) {
		got, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.Equal(t, deadline, got)
		return result(5), nil
	})
	require.NoError(t, err)
}

// lateStore misses the first Get and then serves a stored entry, as when a
// concurrent flight finishes between the first lookup and the flight.
type lateStore struct {
	*memStore
	gets atomic.Int64
}

func (s *lateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.gets.Add(1) == 1 {
		return nil, false, nil
	}
	return s.memStore.Get(ctx, key)
}

func TestGetOrComputeRechecksInsideFlight(t *testing.T) {
	store := &lateStore{memStore: newMemStore()}
	c := New(store, time.Minute, nil)
	q := query(t, 0, 13)
	c.Set(context.Background(), q, 10, result(7))

	calls := 0
	res, hit, err := c.GetOrCompute(context.Background(), q, 10, func(context.Context) (*executor.SearchResult, error) {
		calls++
		return result(5), nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Zero(t, calls)
	assert.Equal(t, 7.0, res.MaxScore)
	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

type countingStore struct {
	*memStore
	gets atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	return s.memStore.Get(ctx, key)
}

func TestGuardStopsCallingFailingStore(t *testing.T) {
	store := &countingStore{memStore: newMemStore()}
	store.getErr = errors.New("connection refused")
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{Failures: 2, Cooldown: time.Hour})
	c := New(Guard(store, breaker), time.Minute, nil)

	q := query(t, 0, 13)
	for range 5 {
		_, ok := c.Get(context.Background(), q, 10)
		assert.False(t, ok)
	}
	assert.Equal(t, int64(2), store.gets.Load())
	assert.Equal(t, resilience.StateOpen, breaker.State())
	_, misses := c.Stats()
	assert.Equal(t, int64(5), misses)

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
