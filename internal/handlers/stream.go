package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/serroba/visitor-analytics/internal/stream"
	"go.uber.org/zap"
)

// StreamHandler pushes every ingested event to Server-Sent Events clients.
type StreamHandler struct {
	hub    *stream.Hub
	now    func() time.Time
	logger *zap.Logger
}

// NewStreamHandler creates a new SSE handler over hub.
func NewStreamHandler(hub *stream.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, now: time.Now, logger: logger}
}

// StreamEvents maps SSE event names to payload types. Both the greeting and
// forwarded events go out as unnamed "message" events.
var StreamEvents = map[string]any{
	"message": json.RawMessage{},
}

// Stream subscribes before greeting so no event ingested in between is lost,
// then forwards events until the client goes away or the hub drops it.
func (h *StreamHandler) Stream(ctx context.Context, _ *struct{}, send sse.Sender) {
	sub := h.hub.Subscribe()
	defer sub.Close()

	log := h.logger.With(zap.String("subscriberId", sub.ID()))
	log.Debug("sse client connected")

	greeting, err := json.Marshal(stream.NewConnected(h.now()))
	if err != nil {
		log.Error("failed to encode greeting", zap.Error(err))

		return
	}

	if err := send.Data(json.RawMessage(greeting)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("sse client disconnected")

			return
		case msg, ok := <-sub.Messages():
			if !ok {
				log.Info("sse client dropped")

				return
			}

			if err := send.Data(json.RawMessage(msg)); err != nil {
				log.Debug("sse write failed", zap.Error(err))

				return
			}
		}
	}
}
