package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/visitor-analytics/internal/analytics"
)

// Default Redis keys.
const (
	RedisEventsKey   = "analytics:events"
	RedisSessionsKey = "analytics:sessions"
	RedisUsersKey    = "analytics:users"
)

// RedisEventStore keeps the event log in a Redis list, trimmed to maxEvents.
type RedisEventStore struct {
	client    *redis.Client
	key       string
	maxEvents int64
}

// NewRedisEventStore creates a Redis-backed event log under key.
func NewRedisEventStore(client *redis.Client, key string, maxEvents int) *RedisEventStore {
	if maxEvents <= 0 {
		maxEvents = analytics.DefaultMaxEvents
	}

	return &RedisEventStore{client: client, key: key, maxEvents: int64(maxEvents)}
}

func (r *RedisEventStore) Append(ctx context.Context, event *analytics.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	// RPUSH and LTRIM run in one MULTI so readers never see the list over the bound.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key, payload)
		pipe.LTrim(ctx, r.key, -r.maxEvents, -1)

		return nil
	})

	return err
}

func (r *RedisEventStore) Events(ctx context.Context) ([]*analytics.Event, error) {
	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*analytics.Event, 0, len(items))

	for _, item := range items {
		var event analytics.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		events = append(events, &event)
	}

	return events, nil
}

// RedisRepository keeps rollup records as JSON values of a single Redis hash.
type RedisRepository[T any] struct {
	client *redis.Client
	key    string
}

// NewRedisRepository creates a repository backed by the hash at key.
func NewRedisRepository[T any](client *redis.Client, key string) *RedisRepository[T] {
	return &RedisRepository[T]{client: client, key: key}
}

func (r *RedisRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := r.client.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, analytics.ErrNotFound
		}

		return nil, err
	}

	var record T
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}

	return &record, nil
}

func (r *RedisRepository[T]) Put(ctx context.Context, key string, value *T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	return r.client.HSet(ctx, r.key, key, payload).Err()
}

func (r *RedisRepository[T]) Delete(ctx context.Context, key string) error {
	return r.client.HDel(ctx, r.key, key).Err()
}

// List returns records in no particular order.
func (r *RedisRepository[T]) List(ctx context.Context) ([]*T, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*T, 0, len(all))

	for key, raw := range all {
		var record T
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}

		records = append(records, &record)
	}

	return records, nil
}

var (
	_ analytics.EventStore                    = (*RedisEventStore)(nil)
	_ analytics.Repository[analytics.Session] = (*RedisRepository[analytics.Session])(nil)
)
