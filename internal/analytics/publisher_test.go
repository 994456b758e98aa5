package analytics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	messages   []*message.Message
	topic      string
	publishErr error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes stored event with type metadata", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := analytics.NewPublishFunc(mock)

		event := &analytics.Event{
			ID:              "evt-1",
			SessionID:       "s1",
			EventType:       "page_load",
			Timestamp:       1000,
			ServerTimestamp: 1001,
			Extra:           map[string]json.RawMessage{"campaign": json.RawMessage(`"spring"`)},
		}

		err := publish(event)

		require.NoError(t, err)
		assert.Equal(t, analytics.TopicEventIngested, mock.topic)
		require.Len(t, mock.messages, 1)
		assert.Equal(t, "page_load", mock.messages[0].Metadata.Get("eventType"))

		var decoded analytics.Event
		require.NoError(t, json.Unmarshal(mock.messages[0].Payload, &decoded))
		assert.Equal(t, "evt-1", decoded.ID)
		assert.JSONEq(t, `"spring"`, string(decoded.Extra["campaign"]))
	})

	t.Run("returns error when publish fails", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("publish error")}
		publish := analytics.NewPublishFunc(mock)

		err := publish(&analytics.Event{ID: "evt-1"})

		assert.Error(t, err)
	})
}
