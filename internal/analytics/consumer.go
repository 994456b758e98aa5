package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/visitor-analytics/internal/messaging"
	"go.uber.org/zap"
)

// NewArchiveConsumer consumes TopicEventIngested and writes each event to archive.
// A failed save nacks the message so the broker redelivers it.
func NewArchiveConsumer(subscriber message.Subscriber, archive Archive, logger *zap.Logger) *messaging.Consumer[Event] {
	return messaging.NewConsumer(subscriber, TopicEventIngested, func(ctx context.Context, event *Event) error {
		if err := archive.SaveEvent(ctx, event); err != nil {
			return err
		}

		logger.Debug("archived event",
			zap.String("eventId", event.ID),
			zap.String("eventType", event.EventType),
		)

		return nil
	}, logger)
}
