package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/resilience"
)

// guardedStore routes reads and writes through a circuit breaker so an
// unreachable Redis costs one fast error per call instead of a dial
// timeout. Invalidation always reaches the store.
type guardedStore struct {
	Store
	breaker *resilience.Breaker
}

// Guard wraps store with breaker.
func Guard(store Store, breaker *resilience.Breaker) Store {
	return &guardedStore{Store: store, breaker: breaker}
}

func (g *guardedStore) Get(ctx context.Context, key string) (data []byte, found bool, err error) {
	err = g.breaker.Do(func() error {
		var getErr error
		data, found, getErr = g.Store.Get(ctx, key)
		return getErr
	})
	return data, found, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.Store.Set(ctx, key, value, ttl)
	})
}
