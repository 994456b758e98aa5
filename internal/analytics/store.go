package analytics

import "context"

// DefaultMaxEvents is the retention bound of the event log.
const DefaultMaxEvents = 10000

// EventStore is a bounded, append-only event log. Implementations keep at
// most their configured number of events and drop the oldest first.
type EventStore interface {
	// Append adds the event at the end of the log. On error the event is not stored.
	Append(ctx context.Context, event *Event) error
	// Events returns a snapshot of the log in insertion order.
	Events(ctx context.Context) ([]*Event, error)
}

// Repository stores rollup records by key.
type Repository[T any] interface {
	// Get returns ErrNotFound when the key is unknown.
	Get(ctx context.Context, key string) (*T, error)
	Put(ctx context.Context, key string, value *T) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*T, error)
}

// Archive persists ingested events outside the bounded log.
type Archive interface {
	SaveEvent(ctx context.Context, event *Event) error
}
