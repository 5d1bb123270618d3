package store

import (
	"context"
	"time"
)

type timeoutStore struct {
	inner   DocumentStore
	timeout time.Duration
}

// WithTimeout bounds every call to inner by d. A non-positive d returns inner
// unchanged.
func WithTimeout(inner DocumentStore, d time.Duration) DocumentStore {
	if d <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: d}
}

func (s *timeoutStore) Scan(ctx context.Context, table string, filter Filter) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Scan(ctx, table, filter)
}

func (s *timeoutStore) Get(ctx context.Context, table, key string) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Get(ctx, table, key)
}

func (s *timeoutStore) PutIfAbsent(ctx context.Context, table string, item Item, uniqueAttr string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.PutIfAbsent(ctx, table, item, uniqueAttr)
}

func (s *timeoutStore) Update(ctx context.Context, table, key string, fields Item) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Update(ctx, table, key, fields)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.Ping(ctx)
}
