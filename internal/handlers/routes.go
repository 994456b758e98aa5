package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/serroba/visitor-analytics/internal/ratelimit"
)

// RegisterRoutes registers the analytics routes. ingestPerHour bounds
// submissions per client; zero disables the limit.
func RegisterRoutes(api huma.API, h *AnalyticsHandler, streams *StreamHandler, ingestPerHour int64) {
	ingestLimit := ratelimit.EndpointConfig{Disabled: true}
	if ingestPerHour > 0 {
		ingestLimit = ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{{Window: time.Hour, Max: ingestPerHour}},
		}
	}

	huma.Register(api, huma.Operation{
		OperationID:  "ingest-event",
		Method:       http.MethodPost,
		Path:         "/api/analytics",
		Summary:      "Record an event",
		Description:  "Stores a visitor event, updates session and user rollups and forwards it to live subscribers.",
		Tags:         []string{"Analytics"},
		MaxBodyBytes: MaxIngestBodyBytes,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ingestLimit,
		},
	}, h.Ingest)

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/api/analytics/events",
		Summary:     "Query events",
		Description: "Returns stored events filtered by type, session, user and client time range, in arrival order.",
		Tags:        []string{"Analytics"},
	}, h.ListEvents)

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/analytics/sessions",
		Summary:     "List sessions",
		Tags:        []string{"Analytics"},
	}, h.ListSessions)

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/analytics/sessions/{sessionId}",
		Summary:     "Get a session",
		Tags:        []string{"Analytics"},
	}, h.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/api/analytics/users",
		Summary:     "List users",
		Tags:        []string{"Analytics"},
	}, h.ListUsers)

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/api/analytics/users/{userId}",
		Summary:     "Get a user",
		Tags:        []string{"Analytics"},
	}, h.GetUser)

	huma.Register(api, huma.Operation{
		OperationID: "get-summary",
		Method:      http.MethodGet,
		Path:        "/api/analytics/summary",
		Summary:     "Summarize events",
		Tags:        []string{"Analytics"},
	}, h.Summary)

	sse.Register(api, huma.Operation{
		OperationID: "stream-events",
		Method:      http.MethodGet,
		Path:        "/api/analytics/stream",
		Summary:     "Live event stream",
		Description: "Server-Sent Events feed of every ingested event. Sends a connected message first; no replay.",
		Tags:        []string{"Analytics"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, StreamEvents, streams.Stream)
}
