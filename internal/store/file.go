package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/serroba/visitor-analytics/internal/analytics"
)

// File names used inside the data directory.
const (
	EventsFile   = "events.json"
	SessionsFile = "sessions.json"
	UsersFile    = "users.json"
)

// FileEventStore keeps the event log in memory and mirrors it to a JSON
// array file, rewritten on every append.
type FileEventStore struct {
	mu        sync.RWMutex
	path      string
	maxEvents int
	events    []*analytics.Event
}

// OpenFileEventStore loads path, creating it when missing. A log longer than
// maxEvents is trimmed to its newest entries.
func OpenFileEventStore(path string, maxEvents int) (*FileEventStore, error) {
	if maxEvents <= 0 {
		maxEvents = analytics.DefaultMaxEvents
	}

	var events []*analytics.Event
	if err := readJSONFile(path, &events); err != nil {
		return nil, err
	}

	if len(events) > maxEvents {
		events = events[len(events)-maxEvents:]
	}

	if events == nil {
		events = []*analytics.Event{}
	}

	s := &FileEventStore{path: path, maxEvents: maxEvents, events: events}

	if err := writeJSONFile(path, s.events); err != nil {
		return nil, err
	}

	return s, nil
}

// Append stores the event and rewrites the file. If the write fails the
// in-memory log is left as it was.
func (s *FileEventStore) Append(_ context.Context, event *analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clip(s.events), event)
	if len(next) > s.maxEvents {
		next = next[len(next)-s.maxEvents:]
	}

	if err := writeJSONFile(s.path, next); err != nil {
		return err
	}

	s.events = next

	return nil
}

func (s *FileEventStore) Events(_ context.Context) ([]*analytics.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events), nil
}

// FileRepository keeps rollup records in memory and mirrors them to a JSON
// array file in insertion order.
type FileRepository[T any] struct {
	mu    sync.RWMutex
	path  string
	keyOf func(*T) string
	mem   *MemoryRepository[T]
}

// OpenFileRepository loads the records in path, creating the file when
// missing. keyOf derives a record's key.
func OpenFileRepository[T any](path string, keyOf func(*T) string) (*FileRepository[T], error) {
	var records []*T
	if err := readJSONFile(path, &records); err != nil {
		return nil, err
	}

	r := &FileRepository[T]{path: path, keyOf: keyOf, mem: NewMemoryRepository[T]()}

	for _, record := range records {
		_ = r.mem.Put(context.Background(), keyOf(record), record)
	}

	if err := r.flush(); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns a shallow copy so callers can modify it before Put without
// touching the stored record.
func (r *FileRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, err := r.mem.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c := *record

	return &c, nil
}

func (r *FileRepository[T]) Put(ctx context.Context, key string, value *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.mem.Get(ctx, key)
	if err != nil && !errors.Is(err, analytics.ErrNotFound) {
		return err
	}

	_ = r.mem.Put(ctx, key, value)

	if err := r.flush(); err != nil {
		if prev == nil {
			_ = r.mem.Delete(ctx, key)
		} else {
			_ = r.mem.Put(ctx, key, prev)
		}

		return err
	}

	return nil
}

func (r *FileRepository[T]) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.mem.Get(ctx, key); err != nil {
		return nil
	}

	_ = r.mem.Delete(ctx, key)

	return r.flush()
}

func (r *FileRepository[T]) List(ctx context.Context) ([]*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.mem.List(ctx)
}

func (r *FileRepository[T]) flush() error {
	records, _ := r.mem.List(context.Background())

	return writeJSONFile(r.path, records)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

// writeJSONFile replaces path atomically via a temp file in the same directory.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

var (
	_ analytics.EventStore                 = (*FileEventStore)(nil)
	_ analytics.Repository[analytics.User] = (*FileRepository[analytics.User])(nil)
)
