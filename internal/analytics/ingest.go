package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source is what the transport observed about the submitting client.
type Source struct {
	IP        string
	UserAgent string
	Origin    string
}

// Broadcaster fans an ingested event out to live subscribers. It must not block.
type Broadcaster interface {
	Broadcast(event *Event)
}

// PublishFunc hands an ingested event to the message broker.
type PublishFunc func(event *Event) error

// Recorder receives ingestion outcomes, typically for metrics.
type Recorder interface {
	EventIngested(eventType string)
	IngestFailed()
	AggregateFailed(aggregate string)
}

type nopRecorder struct{}

func (nopRecorder) EventIngested(string)   {}
func (nopRecorder) IngestFailed()          {}
func (nopRecorder) AggregateFailed(string) {}

// Ingestor enriches, stores, aggregates and fans out submitted events.
type Ingestor struct {
	mu       sync.Mutex
	events   EventStore
	sessions *SessionAggregator
	users    *UserAggregator
	hub      Broadcaster
	publish  PublishFunc
	recorder Recorder
	newID    func() string
	now      func() time.Time
	logger   *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithPublisher publishes every stored event after the response-critical steps.
func WithPublisher(publish PublishFunc) IngestorOption {
	return func(i *Ingestor) { i.publish = publish }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) IngestorOption {
	return func(i *Ingestor) { i.recorder = r }
}

// WithClock overrides the server clock.
func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(gen func() string) IngestorOption {
	return func(i *Ingestor) { i.newID = gen }
}

// NewIngestor creates an ingestor. hub may be nil.
func NewIngestor(
	events EventStore,
	sessions *SessionAggregator,
	users *UserAggregator,
	hub Broadcaster,
	logger *zap.Logger,
	opts ...IngestorOption,
) *Ingestor {
	i := &Ingestor{
		events:   events,
		sessions: sessions,
		users:    users,
		hub:      hub,
		recorder: nopRecorder{},
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Ingest stamps the event with server fields and records it. Only a failed
// append is returned as an error; aggregate, broadcast and publish failures
// are logged and the event stays stored.
func (i *Ingestor) Ingest(ctx context.Context, event *Event, src Source) (*Event, error) {
	event.ID = i.newID()
	event.ServerTimestamp = i.now().UnixMilli()
	event.IP = src.IP
	event.UserAgent = src.UserAgent
	event.Origin = src.Origin

	i.mu.Lock()

	if err := i.events.Append(ctx, event); err != nil {
		i.mu.Unlock()
		i.recorder.IngestFailed()
		i.logger.Error("failed to store analytics event",
			zap.String("eventId", event.ID),
			zap.String("eventType", event.EventType),
			zap.Error(err),
		)

		return nil, fmt.Errorf("%w: append event: %w", ErrStorage, err)
	}

	i.updateAggregate(ctx, i.sessions.Name(), i.sessions.Update, event)
	i.updateAggregate(ctx, i.users.Name(), i.users.Update, event)

	if i.hub != nil {
		i.hub.Broadcast(event)
	}

	i.mu.Unlock()

	i.recorder.EventIngested(event.EventType)

	if i.publish != nil {
		if err := i.publish(event); err != nil {
			i.logger.Error("failed to publish analytics event",
				zap.String("eventId", event.ID),
				zap.Error(err),
			)
		}
	}

	return event, nil
}

func (i *Ingestor) updateAggregate(
	ctx context.Context,
	name string,
	update func(context.Context, *Event) error,
	event *Event,
) {
	if err := update(ctx, event); err != nil {
		i.recorder.AggregateFailed(name)
		i.logger.Warn("failed to update aggregate",
			zap.String("aggregate", name),
			zap.String("eventId", event.ID),
			zap.Error(err),
		)
	}
}
