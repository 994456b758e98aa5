package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/serroba/visitor-analytics/internal/analytics"
)

// LRURepository is an in-memory repository bounded to a maximum number of
// records. Writing a record makes it most recent; when full, the least
// recently written record is evicted.
type LRURepository[T any] struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *T]
	onEvict  func(key string)
	removing bool
}

// NewLRURepository creates a bounded repository. onEvict, if not nil, is
// called with the key of every evicted record.
func NewLRURepository[T any](size int, onEvict func(key string)) (*LRURepository[T], error) {
	r := &LRURepository[T]{onEvict: onEvict}

	cache, err := lru.NewWithEvict(size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	r.cache = cache

	return r, nil
}

// evicted runs inside cache calls made while r.mu is held.
func (r *LRURepository[T]) evicted(key string, _ *T) {
	if r.removing || r.onEvict == nil {
		return
	}

	r.onEvict(key)
}

// Get does not change recency.
func (r *LRURepository[T]) Get(_ context.Context, key string) (*T, error) {
	record, ok := r.cache.Peek(key)
	if !ok {
		return nil, analytics.ErrNotFound
	}

	return record, nil
}

func (r *LRURepository[T]) Put(_ context.Context, key string, value *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Add(key, value)

	return nil
}

// Delete removes key without reporting it as an eviction.
func (r *LRURepository[T]) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removing = true
	r.cache.Remove(key)
	r.removing = false

	return nil
}

// List returns records from least to most recently written.
func (r *LRURepository[T]) List(_ context.Context) ([]*T, error) {
	return r.cache.Values(), nil
}

var _ analytics.Repository[analytics.User] = (*LRURepository[analytics.User])(nil)
