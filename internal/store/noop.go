package store

import (
	"context"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"go.uber.org/zap"
)

// NoopArchive logs events instead of persisting them.
type NoopArchive struct {
	logger *zap.Logger
}

// NewNoopArchive creates an archive that only logs.
func NewNoopArchive(logger *zap.Logger) *NoopArchive {
	return &NoopArchive{logger: logger}
}

func (n *NoopArchive) SaveEvent(_ context.Context, event *analytics.Event) error {
	n.logger.Info("analytics event received",
		zap.String("eventId", event.ID),
		zap.String("eventType", event.EventType),
		zap.String("sessionId", event.SessionID),
		zap.String("userId", event.UserID),
		zap.Int64("serverTimestamp", event.ServerTimestamp),
	)

	return nil
}

var _ analytics.Archive = (*NoopArchive)(nil)
