package analytics_test

import (
	"encoding/json"
	"testing"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	t.Run("decodes known fields", func(t *testing.T) {
		event, err := analytics.ParseEvent([]byte(`{
			"sessionId": "s1",
			"userId": "u1",
			"eventType": "page_load",
			"timestamp": 1700000000000,
			"url": "https://example.com/a",
			"deviceInfo": {"windowWidth": 1280, "platform": "MacIntel"},
			"browser": {"name": "Chrome", "version": "120"}
		}`))

		require.NoError(t, err)
		assert.Equal(t, "s1", event.SessionID)
		assert.Equal(t, "u1", event.UserID)
		assert.True(t, event.IsPageView())
		assert.Equal(t, int64(1700000000000), event.Timestamp)
		assert.Equal(t, "Chrome", event.Browser.Name)

		width, ok := event.DeviceInfo.WindowWidth()
		assert.True(t, ok)
		assert.InDelta(t, 1280, width, 0)
	})

	t.Run("accepts an empty object", func(t *testing.T) {
		event, err := analytics.ParseEvent([]byte(`{}`))

		require.NoError(t, err)
		assert.Empty(t, event.SessionID)
		assert.Zero(t, event.Timestamp)
	})

	t.Run("accepts fractional and null timestamps", func(t *testing.T) {
		event, err := analytics.ParseEvent([]byte(`{"timestamp": 1500.7}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1500), event.Timestamp)

		event, err = analytics.ParseEvent([]byte(`{"timestamp": null}`))
		require.NoError(t, err)
		assert.Zero(t, event.Timestamp)
	})

	for name, body := range map[string]string{
		"malformed json":     `{"sessionId": `,
		"array body":         `[1, 2]`,
		"string body":        `"hello"`,
		"empty body":         ``,
		"mistyped field":     `{"sessionId": 42}`,
		"mistyped timestamp": `{"timestamp": "yesterday"}`,
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := analytics.ParseEvent([]byte(body))

			require.ErrorIs(t, err, analytics.ErrValidation)
		})
	}
}

func TestEvent_JSON(t *testing.T) {
	t.Run("keeps unknown fields", func(t *testing.T) {
		event, err := analytics.ParseEvent([]byte(`{"eventType":"click","element":{"id":"buy"},"campaign":"spring"}`))
		require.NoError(t, err)

		event.ID = "evt-1"
		event.ServerTimestamp = 42

		out, err := json.Marshal(event)
		require.NoError(t, err)

		assert.JSONEq(t, `{
			"id": "evt-1",
			"serverTimestamp": 42,
			"eventType": "click",
			"element": {"id": "buy"},
			"campaign": "spring"
		}`, string(out))
	})

	t.Run("server fields win over client extras", func(t *testing.T) {
		event, err := analytics.ParseEvent([]byte(`{"ip":"1.2.3.4"}`))
		require.NoError(t, err)

		event.IP = "10.0.0.1"

		out, err := json.Marshal(event)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "10.0.0.1", decoded["ip"])
	})
}

func TestDeviceInfo_WindowWidth(t *testing.T) {
	tests := []struct {
		name   string
		info   analytics.DeviceInfo
		want   float64
		wantOK bool
	}{
		{name: "float", info: analytics.DeviceInfo{"windowWidth": 800.0}, want: 800, wantOK: true},
		{name: "int", info: analytics.DeviceInfo{"windowWidth": 500}, want: 500, wantOK: true},
		{name: "json number", info: analytics.DeviceInfo{"windowWidth": json.Number("1024")}, want: 1024, wantOK: true},
		{name: "string", info: analytics.DeviceInfo{"windowWidth": "wide"}},
		{name: "missing", info: analytics.DeviceInfo{"platform": "x"}},
		{name: "nil", info: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.info.WindowWidth()

			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 0)
		})
	}
}
