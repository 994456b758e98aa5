package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/visitor-analytics/internal/ratelimit"
)

// fixedWindowScript increments the counter and anchors its expiry to the
// first request of the window.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimitRedisStore is a fixed-window ratelimit.Store shared by every
// server instance using the same Redis.
type RateLimitRedisStore struct {
	client *redis.Client
}

// NewRateLimitRedisStore creates a Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	return fixedWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
}

var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
