package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Quota wraps a Store and refuses writes that would push the total stored
// size past Limit bytes.
type Quota struct {
	Store
	Limit int64

	mu    sync.Mutex
	sizes map[string]int64
	used  int64
}

// WithQuota returns s unchanged when limit is not positive.
func WithQuota(ctx context.Context, s Store, limit int64) (Store, error) {
	if limit <= 0 {
		return s, nil
	}
	q := &Quota{Store: s, Limit: limit, sizes: map[string]int64{}}
	keys, err := s.Keys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("measure store: %w", err)
	}
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", k, err)
		}
		q.sizes[k] = int64(len(v))
		q.used += int64(len(v))
	}
	return q, nil
}

func (q *Quota) Set(ctx context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := q.used - q.sizes[key] + int64(len(value))
	if next > q.Limit {
		return fmt.Errorf("set %s (%d bytes, %d of %d used): %w", key, len(value), q.used, q.Limit, ErrQuotaExceeded)
	}
	if err := q.Store.Set(ctx, key, value); err != nil {
		return err
	}
	q.sizes[key] = int64(len(value))
	q.used = next
	return nil
}

func (q *Quota) Delete(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.Store.Delete(ctx, key); err != nil {
		return err
	}
	q.used -= q.sizes[key]
	delete(q.sizes, key)
	return nil
}

// Used reports the bytes currently accounted for.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}
