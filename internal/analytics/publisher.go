package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/visitor-analytics/internal/messaging"
)

// TopicEventIngested carries every event after it has been stored.
const TopicEventIngested = "analytics.event.ingested"

// NewPublishFunc publishes ingested events to TopicEventIngested. Each message
// carries the event type in its metadata.
func NewPublishFunc(publisher message.Publisher) PublishFunc {
	publish := messaging.NewPublishFunc(publisher, TopicEventIngested, func(e *Event) map[string]string {
		return map[string]string{"eventType": e.EventType}
	})

	return PublishFunc(publish)
}
