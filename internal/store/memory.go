package store

import (
	"context"
	"slices"
	"sync"

	"github.com/serroba/visitor-analytics/internal/analytics"
)

// MemoryEventStore is a fixed-capacity ring buffer of events.
type MemoryEventStore struct {
	mu    sync.RWMutex
	buf   []*analytics.Event
	head  int // index of the oldest event
	count int
}

// NewMemoryEventStore creates an in-memory event log holding at most maxEvents.
func NewMemoryEventStore(maxEvents int) *MemoryEventStore {
	if maxEvents <= 0 {
		maxEvents = analytics.DefaultMaxEvents
	}

	return &MemoryEventStore{buf: make([]*analytics.Event, maxEvents)}
}

func (m *MemoryEventStore) Append(_ context.Context, event *analytics.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := len(m.buf)

	if m.count < size {
		m.buf[(m.head+m.count)%size] = event
		m.count++

		return nil
	}

	m.buf[m.head] = event
	m.head = (m.head + 1) % size

	return nil
}

func (m *MemoryEventStore) Events(_ context.Context) ([]*analytics.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*analytics.Event, 0, m.count)
	for i := range m.count {
		out = append(out, m.buf[(m.head+i)%len(m.buf)])
	}

	return out, nil
}

// MemoryRepository keeps rollup records in a map, remembering insertion order.
type MemoryRepository[T any] struct {
	mu      sync.RWMutex
	records map[string]*T
	order   []string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository[T any]() *MemoryRepository[T] {
	return &MemoryRepository[T]{records: make(map[string]*T)}
}

func (m *MemoryRepository[T]) Get(_ context.Context, key string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[key]
	if !ok {
		return nil, analytics.ErrNotFound
	}

	return record, nil
}

func (m *MemoryRepository[T]) Put(_ context.Context, key string, value *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[key]; !ok {
		m.order = append(m.order, key)
	}

	m.records[key] = value

	return nil
}

func (m *MemoryRepository[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[key]; !ok {
		return nil
	}

	delete(m.records, key)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })

	return nil
}

func (m *MemoryRepository[T]) List(_ context.Context) ([]*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*T, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.records[key])
	}

	return out, nil
}

// Compile-time checks.
var (
	_ analytics.EventStore                    = (*MemoryEventStore)(nil)
	_ analytics.Repository[analytics.Session] = (*MemoryRepository[analytics.Session])(nil)
)
