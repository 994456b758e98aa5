package analytics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

type rollupKind[T any] struct {
	name      string
	keyOf     func(e *Event) string
	seed      func(e *Event) *T
	apply     func(record *T, e *Event)
	clone     func(record *T) *T
	key       func(record *T) string
	firstSeen func(record *T) int64
	lastSeen  func(record *T) int64
}

// Aggregator maintains one rollup record per key, updated from each event.
// Updates are serialized so that records for the same key see events in
// append order.
type Aggregator[T any] struct {
	mu   sync.Mutex
	repo Repository[T]
	kind rollupKind[T]
}

// SessionAggregator keeps one Session per session id.
type SessionAggregator = Aggregator[Session]

// UserAggregator keeps one User per user id.
type UserAggregator = Aggregator[User]

// NewSessionAggregator creates a session aggregator over the repository.
func NewSessionAggregator(repo Repository[Session]) *SessionAggregator {
	return &Aggregator[Session]{repo: repo, kind: sessionKind}
}

// NewUserAggregator creates a user aggregator over the repository.
func NewUserAggregator(repo Repository[User]) *UserAggregator {
	return &Aggregator[User]{repo: repo, kind: userKind}
}

// Name returns the aggregate name, "session" or "user".
func (a *Aggregator[T]) Name() string {
	return a.kind.name
}

// Update folds the event into the record for its key. Events without a key
// are ignored.
func (a *Aggregator[T]) Update(ctx context.Context, event *Event) error {
	key := a.kind.keyOf(event)
	if key == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	record, err := a.repo.Get(ctx, key)

	switch {
	case errors.Is(err, ErrNotFound):
		record = a.kind.seed(event)
	case err != nil:
		return fmt.Errorf("%w: load %s %q: %w", ErrStorage, a.kind.name, key, err)
	}

	a.kind.apply(record, event)

	if err := a.repo.Put(ctx, key, record); err != nil {
		return fmt.Errorf("%w: save %s %q: %w", ErrStorage, a.kind.name, key, err)
	}

	return nil
}

// Get returns a copy of the record for key.
func (a *Aggregator[T]) Get(ctx context.Context, key string) (*T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	record, err := a.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return a.kind.clone(record), nil
}

// List returns copies of all records ordered by first-seen time, then key.
func (a *Aggregator[T]) List(ctx context.Context) ([]*T, error) {
	a.mu.Lock()
	records, err := a.repo.List(ctx)

	if err != nil {
		a.mu.Unlock()

		return nil, err
	}

	out := make([]*T, 0, len(records))
	for _, r := range records {
		out = append(out, a.kind.clone(r))
	}
	a.mu.Unlock()

	slices.SortStableFunc(out, func(x, y *T) int {
		if c := cmp.Compare(a.kind.firstSeen(x), a.kind.firstSeen(y)); c != 0 {
			return c
		}

		return cmp.Compare(a.kind.key(x), a.kind.key(y))
	})

	return out, nil
}

// PruneIdle deletes records whose last activity is before the cutoff
// (epoch-ms) and returns how many were removed.
func (a *Aggregator[T]) PruneIdle(ctx context.Context, cutoff int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, r := range records {
		if a.kind.lastSeen(r) >= cutoff {
			continue
		}

		if err := a.repo.Delete(ctx, a.kind.key(r)); err != nil {
			return removed, fmt.Errorf("delete %s %q: %w", a.kind.name, a.kind.key(r), err)
		}

		removed++
	}

	return removed, nil
}
