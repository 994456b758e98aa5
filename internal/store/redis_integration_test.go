//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestRedisStoresIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	t.Run("event list stays bounded", func(t *testing.T) {
		key := "analytics:test:events"
		defer client.Del(ctx, key)

		s := store.NewRedisEventStore(client, key, 3)
		appendN(t, s, 5)

		assertBoundedFIFO(t, s, 5, 3)
	})

	t.Run("session hash round trip", func(t *testing.T) {
		key := "analytics:test:sessions"
		defer client.Del(ctx, key)

		r := store.NewRedisRepository[analytics.Session](client, key)
		require.NoError(t, r.Put(ctx, "s1", &analytics.Session{SessionID: "s1", Events: 4}))

		got, err := r.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 4, got.Events)
	})

	t.Run("rate limit counter expires", func(t *testing.T) {
		key := "ratelimit:test:client"
		defer client.Del(ctx, key)

		s := store.NewRateLimitRedisStore(client)

		_, err := s.Record(ctx, key, 100*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)

		count, err := s.Record(ctx, key, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
