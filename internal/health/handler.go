package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/visitor-analytics/internal/ratelimit"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports the number of connected live clients.
type ClientCounter interface {
	Count() int
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	redis   Checker
	clients ClientCounter
	now     func() time.Time
}

// NewHandler creates a new health handler. redis is nil when no Redis
// backend is configured.
func NewHandler(redis Checker, clients ClientCounter) *Handler {
	return &Handler{redis: redis, clients: clients, now: time.Now}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status           string    `enum:"healthy,degraded" json:"status"`
		Timestamp        time.Time `json:"timestamp"`
		ConnectedClients int       `doc:"Live stream subscribers" json:"connectedClients"`
		Redis            string    `json:"redis,omitempty"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = StatusHealthy
	resp.Body.Timestamp = h.now().UTC()
	resp.Body.ConnectedClients = h.clients.Count()

	if h.redis == nil {
		return resp, nil
	}

	if err := h.redis.Ping(ctx); err != nil {
		resp.Body.Redis = "unhealthy"
		resp.Body.Status = StatusDegraded
	} else {
		resp.Body.Redis = "healthy"
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      "GET",
		Path:        "/api/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
