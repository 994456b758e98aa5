package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/visitor-analytics/internal/ratelimit"
)

type rateWindow struct {
	count   int64
	expires time.Time
}

// RateLimitMemoryStore is an in-memory fixed-window ratelimit.Store.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	lastGC  time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Expired windows are swept at most once per window length.
	if now.Sub(s.lastGC) >= window {
		for k, w := range s.windows {
			if !now.Before(w.expires) {
				delete(s.windows, k)
			}
		}

		s.lastGC = now
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &rateWindow{expires: now.Add(window)}
		s.windows[key] = w
	}

	w.count++

	return w.count, nil
}

func (s *RateLimitMemoryStore) openWindows() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
