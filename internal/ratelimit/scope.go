package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope groups operations that share rate limits.
type Scope string

const (
	// ScopeGlobal applies to every request.
	ScopeGlobal Scope = "global"
	// ScopeQuery applies to reads of events, rollups and summaries.
	ScopeQuery Scope = "query"
	// ScopeIngest applies to event submissions.
	ScopeIngest Scope = "ingest"
)

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig is per-operation rate limit configuration, attached to a
// huma.Operation under MetadataKey.
type EndpointConfig struct {
	// Scope replaces method-based scope detection. Ignored when Limits is set.
	Scope Scope

	// Limits, when non-empty, are applied instead of the policy's limits.
	// Counters are kept per client and route template.
	Limits []LimitConfig

	// Disabled skips rate limiting for the operation.
	Disabled bool
}

// ScopeResolver determines which scopes apply to a given request.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// MethodScopeResolver treats safe methods as queries and everything else as
// ingestion.
type MethodScopeResolver struct{}

func NewMethodScopeResolver() *MethodScopeResolver {
	return &MethodScopeResolver{}
}

func (r *MethodScopeResolver) Resolve(ctx huma.Context) []Scope {
	switch ctx.Method() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeQuery}
	default:
		return []Scope{ScopeGlobal, ScopeIngest}
	}
}

// OperationScopeResolver prefers the scope declared in operation metadata and
// falls back to the request method.
type OperationScopeResolver struct {
	fallback *MethodScopeResolver
}

func NewOperationScopeResolver() *OperationScopeResolver {
	return &OperationScopeResolver{fallback: NewMethodScopeResolver()}
}

func (r *OperationScopeResolver) Resolve(ctx huma.Context) []Scope {
	if cfg := GetEndpointConfig(ctx); cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	return r.fallback.Resolve(ctx)
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
