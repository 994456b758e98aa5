package container

import (
	"path/filepath"

	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/messaging"
	"github.com/serroba/visitor-analytics/internal/observability"
	"github.com/serroba/visitor-analytics/internal/store"
	"github.com/serroba/visitor-analytics/internal/stream"
	"go.uber.org/zap"
)

const subscriberIDLength = 12

// StorePackage provides the event log and the two rollup repositories for
// the configured backend.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.EventStore, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Storage {
		case StorageFile:
			return store.OpenFileEventStore(filepath.Join(opts.DataDir, store.EventsFile), opts.MaxEvents)
		case StorageRedis:
			client := do.MustInvoke[*RedisClient](i)

			return store.NewRedisEventStore(client.Client, store.RedisEventsKey, opts.MaxEvents), nil
		default:
			return store.NewMemoryEventStore(opts.MaxEvents), nil
		}
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Repository[analytics.Session], error) {
		return newRepository(i, "session", store.SessionsFile, store.RedisSessionsKey, analytics.SessionKey)
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Repository[analytics.User], error) {
		return newRepository(i, "user", store.UsersFile, store.RedisUsersKey, analytics.UserKey)
	})
}

func newRepository[T any](
	i *do.Injector,
	aggregate, fileName, redisKey string,
	keyOf func(*T) string,
) (analytics.Repository[T], error) {
	opts := do.MustInvoke[*Options](i)

	switch opts.Storage {
	case StorageLRU:
		metrics := do.MustInvoke[*observability.Metrics](i)

		return store.NewLRURepository[T](opts.MaxAggregates, metrics.EvictionCounter(aggregate))
	case StorageFile:
		return store.OpenFileRepository(filepath.Join(opts.DataDir, fileName), keyOf)
	case StorageRedis:
		client := do.MustInvoke[*RedisClient](i)

		return store.NewRedisRepository[T](client.Client, redisKey), nil
	default:
		return store.NewMemoryRepository[T](), nil
	}
}

// StreamPackage provides the live hub.
func StreamPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*stream.Hub, error) {
		newID, err := nanoid.Standard(subscriberIDLength)
		if err != nil {
			return nil, err
		}

		return stream.NewHub(newID, do.MustInvoke[*zap.Logger](i),
			stream.WithObserver(do.MustInvoke[*observability.Metrics](i)),
		), nil
	})
}

// AnalyticsPackage provides the aggregators, the ingestor and the reporter.
func AnalyticsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*analytics.SessionAggregator, error) {
		return analytics.NewSessionAggregator(do.MustInvoke[analytics.Repository[analytics.Session]](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.UserAggregator, error) {
		return analytics.NewUserAggregator(do.MustInvoke[analytics.Repository[analytics.User]](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.Ingestor, error) {
		opts := do.MustInvoke[*Options](i)

		ingestOpts := []analytics.IngestorOption{
			analytics.WithRecorder(do.MustInvoke[*observability.Metrics](i)),
		}

		if opts.Publish {
			group := do.MustInvoke[*messaging.PublisherGroup](i)
			ingestOpts = append(ingestOpts, analytics.WithPublisher(analytics.NewPublishFunc(group.Publisher())))
		}

		return analytics.NewIngestor(
			do.MustInvoke[analytics.EventStore](i),
			do.MustInvoke[*analytics.SessionAggregator](i),
			do.MustInvoke[*analytics.UserAggregator](i),
			do.MustInvoke[*stream.Hub](i),
			do.MustInvoke[*zap.Logger](i),
			ingestOpts...,
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.Reporter, error) {
		source := analytics.ClientTime
		if do.MustInvoke[*Options](i).ServerTimeWindows {
			source = analytics.ServerTime
		}

		return analytics.NewReporter(do.MustInvoke[analytics.EventStore](i), source), nil
	})
}
