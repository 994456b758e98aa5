package container

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLRU    = "lru"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Options configures the server. humacli reads them from flags and
// SERVICE_* environment variables.
type Options struct {
	Port                    int    `default:"3001"    help:"Port to listen on"                                           short:"p"`
	LogFormat               string `default:"console" help:"Log format: console or json"`
	Storage                 string `default:"memory"  help:"Storage backend: memory, lru, file or redis"                 short:"s"`
	DataDir                 string `default:"data"    help:"Directory of the file backend"`
	RedisAddr               string `default:""        help:"Redis address; required by the redis backend and publishing" short:"r"`
	MaxEvents               int    `default:"10000"   help:"Number of most recent events kept"`
	MaxAggregates           int    `default:"10000"   help:"Records kept per aggregate by the lru backend"`
	IdleRetentionHours      int    `default:"0"       help:"Prune sessions and users idle this long; 0 disables"`
	PruneSchedule           string `default:"@hourly" help:"Cron schedule of idle pruning"`
	Publish                 bool   `default:"false"   help:"Publish ingested events to the Redis stream"`
	ServerTimeWindows       bool   `default:"false"   help:"Window summaries on server timestamps"`
	RateLimitPerHour        int    `default:"1000"    help:"Event submissions per client IP per hour; 0 disables"`
	StreamConnectsPerMinute int    `default:"60"      help:"WebSocket connections per client IP per minute; 0 disables"`
}

// Validate reports option combinations the server cannot run with.
func (o *Options) Validate() error {
	switch o.Storage {
	case StorageMemory, StorageLRU, StorageFile:
	case StorageRedis:
		if o.RedisAddr == "" {
			return fmt.Errorf("storage %q requires --redis-addr", o.Storage)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", o.Storage)
	}

	if o.Publish && o.RedisAddr == "" {
		return fmt.Errorf("publishing requires --redis-addr")
	}

	if o.MaxEvents <= 0 {
		return fmt.Errorf("max events must be positive, got %d", o.MaxEvents)
	}

	if o.Storage == StorageLRU && o.MaxAggregates <= 0 {
		return fmt.Errorf("storage %q requires positive max aggregates, got %d", o.Storage, o.MaxAggregates)
	}

	return nil
}

// RedisClient owns the shared Redis connection pool.
type RedisClient struct {
	*redis.Client
}

// Shutdown closes the pool.
func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// LoggerPackage provides the process logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		return NewLogger(do.MustInvoke[*Options](i).LogFormat)
	})
}

// NewLogger builds a JSON production logger or a console development logger.
func NewLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}

// RedisPackage provides the Redis client. Only invoke it when RedisAddr is set.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return newRedisClient(opts.RedisAddr), nil
	})
}

func newRedisClient(addr string) *RedisClient {
	return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: addr})}
}
