package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"go.uber.org/zap"
)

const (
	// MaxIngestBodyBytes bounds a single submission.
	MaxIngestBodyBytes = 10 << 20

	msgStoreFailed = "Failed to store event"
	msgReadFailed  = "Failed to read analytics data"
)

// AnalyticsHandler serves event ingestion and the read endpoints.
type AnalyticsHandler struct {
	ingestor *analytics.Ingestor
	reporter *analytics.Reporter
	sessions *analytics.SessionAggregator
	users    *analytics.UserAggregator
	logger   *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(
	ingestor *analytics.Ingestor,
	reporter *analytics.Reporter,
	sessions *analytics.SessionAggregator,
	users *analytics.UserAggregator,
	logger *zap.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		ingestor: ingestor,
		reporter: reporter,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// IngestRequest carries the raw submission so unknown fields survive decoding.
// The body has no schema; ParseEvent validates it whatever the content type.
type IngestRequest struct {
	RawBody []byte
}

// IngestResponse acknowledges a stored event.
type IngestResponse struct {
	Body struct {
		Success bool   `json:"success"`
		EventID string `doc:"Server-assigned event id" json:"eventId"`
	}
}

// Ingest validates, enriches and records one event.
func (h *AnalyticsHandler) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	event, err := analytics.ParseEvent(req.RawBody)
	if err != nil {
		return nil, toHTTPError(err, msgStoreFailed)
	}

	meta := RequestMetaFromContext(ctx)

	stored, err := h.ingestor.Ingest(ctx, event, analytics.Source{
		IP:        meta.ClientIP,
		UserAgent: meta.UserAgent,
		Origin:    meta.Origin,
	})
	if err != nil {
		return nil, toHTTPError(err, msgStoreFailed)
	}

	resp := &IngestResponse{}
	resp.Body.Success = true
	resp.Body.EventID = stored.ID

	return resp, nil
}

// ListEventsRequest holds the events query parameters.
type ListEventsRequest struct {
	Limit     int    `default:"1000" doc:"Page size" maximum:"10000" minimum:"0" query:"limit"`
	Offset    int    `default:"0" doc:"Matches to skip" minimum:"0" query:"offset"`
	Type      string `doc:"Exact event type" query:"type"`
	SessionID string `doc:"Exact session id" query:"sessionId"`
	UserID    string `doc:"Exact user id" query:"userId"`
	StartTime string `doc:"Inclusive lower bound on the client timestamp, epoch ms" query:"startTime"`
	EndTime   string `doc:"Inclusive upper bound on the client timestamp, epoch ms" query:"endTime"`
}

// ListEventsResponse is one page of matching events.
type ListEventsResponse struct {
	Body struct {
		Events []*analytics.Event `json:"events"`
		Total  int                `json:"total"`
		Limit  int                `json:"limit"`
		Offset int                `json:"offset"`
	}
}

// ListEvents returns a filtered, paginated slice of the event log.
func (h *AnalyticsHandler) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	filter := analytics.Filter{
		EventType: req.Type,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Offset:    req.Offset,
		Limit:     req.Limit,
	}

	var err error

	if filter.StartTime, err = parseMillis("startTime", req.StartTime); err != nil {
		return nil, err
	}

	if filter.EndTime, err = parseMillis("endTime", req.EndTime); err != nil {
		return nil, err
	}

	page, err := h.reporter.Query(ctx, filter)
	if err != nil {
		h.logger.Error("failed to query events", zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	resp := &ListEventsResponse{}
	resp.Body.Events = page.Events
	resp.Body.Total = page.Total
	resp.Body.Limit = req.Limit
	resp.Body.Offset = req.Offset

	return resp, nil
}

func parseMillis(name, raw string) (*int64, error) {
	if raw == "" {
		return nil, nil //nolint:nilnil // absent bound
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &ErrorModel{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid %s: must be epoch milliseconds", name),
		}
	}

	return &v, nil
}

// SessionsResponse lists every session rollup.
type SessionsResponse struct {
	Body []*analytics.Session
}

// ListSessions returns all sessions ordered by start time.
func (h *AnalyticsHandler) ListSessions(ctx context.Context, _ *struct{}) (*SessionsResponse, error) {
	sessions, err := h.sessions.List(ctx)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	return &SessionsResponse{Body: sessions}, nil
}

// SessionRequest addresses one session rollup.
type SessionRequest struct {
	SessionID string `doc:"Session id" path:"sessionId"`
}

// SessionResponse is one session rollup.
type SessionResponse struct {
	Body *analytics.Session
}

// GetSession returns the rollup of one session.
func (h *AnalyticsHandler) GetSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	session, err := h.sessions.Get(ctx, req.SessionID)
	if errors.Is(err, analytics.ErrNotFound) {
		return nil, NewError(http.StatusNotFound, "Session not found")
	}

	if err != nil {
		h.logger.Error("failed to get session", zap.String("sessionId", req.SessionID), zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	return &SessionResponse{Body: session}, nil
}

// UsersResponse lists every user rollup.
type UsersResponse struct {
	Body []*analytics.User
}

// ListUsers returns all users ordered by first sighting.
func (h *AnalyticsHandler) ListUsers(ctx context.Context, _ *struct{}) (*UsersResponse, error) {
	users, err := h.users.List(ctx)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	return &UsersResponse{Body: users}, nil
}

// UserRequest addresses one user rollup.
type UserRequest struct {
	UserID string `doc:"User id" path:"userId"`
}

// UserResponse is one user rollup.
type UserResponse struct {
	Body *analytics.User
}

// GetUser returns the rollup of one user.
func (h *AnalyticsHandler) GetUser(ctx context.Context, req *UserRequest) (*UserResponse, error) {
	user, err := h.users.Get(ctx, req.UserID)
	if errors.Is(err, analytics.ErrNotFound) {
		return nil, NewError(http.StatusNotFound, "User not found")
	}

	if err != nil {
		h.logger.Error("failed to get user", zap.String("userId", req.UserID), zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	return &UserResponse{Body: user}, nil
}

// SummaryResponse wraps a freshly computed report.
type SummaryResponse struct {
	Body *analytics.Report
}

// Summary computes statistics over the current event log.
func (h *AnalyticsHandler) Summary(ctx context.Context, _ *struct{}) (*SummaryResponse, error) {
	report, err := h.reporter.Summary(ctx)
	if err != nil {
		h.logger.Error("failed to compute summary", zap.Error(err))

		return nil, toHTTPError(err, msgReadFailed)
	}

	return &SummaryResponse{Body: report}, nil
}
