package analytics_test

import (
	"context"
	"sync"

	"github.com/serroba/visitor-analytics/internal/analytics"
)

type mapRepo[T any] struct {
	mu      sync.Mutex
	records map[string]*T
	getErr  error
	putErr  error
}

func newMapRepo[T any]() *mapRepo[T] {
	return &mapRepo[T]{records: make(map[string]*T)}
}

func (r *mapRepo[T]) Get(_ context.Context, key string) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}

	record, ok := r.records[key]
	if !ok {
		return nil, analytics.ErrNotFound
	}

	return record, nil
}

func (r *mapRepo[T]) Put(_ context.Context, key string, value *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.putErr != nil {
		return r.putErr
	}

	r.records[key] = value

	return nil
}

func (r *mapRepo[T]) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, key)

	return nil
}

func (r *mapRepo[T]) List(_ context.Context) ([]*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*T, 0, len(r.records))
	for _, v := range r.records {
		out = append(out, v)
	}

	return out, nil
}

type sliceStore struct {
	mu        sync.Mutex
	events    []*analytics.Event
	appendErr error
	readErr   error
}

func (s *sliceStore) Append(_ context.Context, event *analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}

	s.events = append(s.events, event)

	return nil
}

func (s *sliceStore) Events(_ context.Context) ([]*analytics.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}

	return append([]*analytics.Event(nil), s.events...), nil
}
