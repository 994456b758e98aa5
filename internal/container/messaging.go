package container

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/messaging"
	"github.com/serroba/visitor-analytics/internal/observability"
	"github.com/serroba/visitor-analytics/internal/retention"
	"github.com/serroba/visitor-analytics/internal/store"
	"go.uber.org/zap"
)

const (
	archiverConsumerGroup = "analytics-archiver"
	schemaTimeout         = 10 * time.Second
)

// ArchiverOptions configures the archiver process.
type ArchiverOptions struct {
	RedisAddr   string
	DatabaseURL string
	LogFormat   string
}

// PublisherGroupPackage provides the Redis stream publisher.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client:     do.MustInvoke[*RedisClient](i).Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			},
			messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)),
		)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// RetentionPackage provides the idle pruner, scheduled on PruneSchedule.
// Only invoke it when IdleRetentionHours is positive.
func RetentionPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*retention.Pruner, error) {
		opts := do.MustInvoke[*Options](i)
		metrics := do.MustInvoke[*observability.Metrics](i)

		pruner := retention.NewPruner(
			time.Duration(opts.IdleRetentionHours)*time.Hour,
			metrics.Pruned,
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*analytics.SessionAggregator](i),
			do.MustInvoke[*analytics.UserAggregator](i),
		)

		if err := pruner.Start(opts.PruneSchedule); err != nil {
			return nil, err
		}

		return pruner, nil
	})
}

// PostgresPool owns the archive connection pool.
type PostgresPool struct {
	*pgxpool.Pool
}

// Shutdown closes the pool.
func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// ArchiverPackage provides the consumer group that writes the event stream
// to PostgreSQL, or to the log when no database is configured.
func ArchiverPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		return newRedisClient(do.MustInvoke[*ArchiverOptions](i).RedisAddr), nil
	})

	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		return NewLogger(do.MustInvoke[*ArchiverOptions](i).LogFormat)
	})

	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, do.MustInvoke[*ArchiverOptions](i).DatabaseURL)
		if err != nil {
			return nil, err
		}

		return &PostgresPool{Pool: pool}, nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Archive, error) {
		opts := do.MustInvoke[*ArchiverOptions](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			logger.Warn("no database configured, archiving to log")

			return store.NewNoopArchive(logger), nil
		}

		archive := store.NewPostgresArchive(do.MustInvoke[*PostgresPool](i).Pool)

		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()

		if err := archive.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		return archive, nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        do.MustInvoke[*RedisClient](i).Client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: archiverConsumerGroup,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewArchiveConsumer(subscriber, do.MustInvoke[analytics.Archive](i), logger))

		return group, nil
	})
}
