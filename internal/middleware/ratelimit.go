package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/visitor-analytics/internal/handlers"
	"github.com/serroba/visitor-analytics/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	msgRateLimited   = "Rate limit exceeded"
	msgInternalError = "internal server error"
)

// ConnectionLimiter returns a net/http middleware limiting requests per client
// IP. It guards routes mounted outside huma, such as the WebSocket upgrade.
func ConnectionLimiter(limiter ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Error("rate limit check failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeJSONError(w, http.StatusInternalServerError, msgInternalError)

				return
			}

			if !allowed {
				logger.Warn("connection rate limit exceeded",
					zap.String("path", r.URL.Path),
					zap.String("client_ip", ip),
				)
				writeJSONError(w, http.StatusTooManyRequests, msgRateLimited)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PolicyRateLimiter returns a Huma middleware counting requests per client IP.
//
// An operation may carry a ratelimit.EndpointConfig under ratelimit.MetadataKey:
//   - Disabled skips limiting entirely.
//   - Limits replaces the policy with limits counted per route template.
//   - Scope overrides method-based scope detection.
//
// Operations without custom limits are checked against the policy for the
// scopes the resolver returns.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		client := clientKey(ctx)
		log := logger.With(
			zap.String("path", operationPath(ctx)),
			zap.String("method", ctx.Method()),
			zap.String("client_ip", client),
		)

		var (
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			exceeded, err = checkRouteLimits(ctx.Context(), limiter.Store(), operationPath(ctx), client, cfg.Limits)
		} else {
			_, exceeded, err = limiter.Allow(ctx.Context(), client, resolver.Resolve(ctx))
		}

		if err != nil {
			log.Error("rate limit check failed", zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, msgInternalError, err)

			return
		}

		if exceeded != nil {
			log.Warn("rate limit exceeded",
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
			)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msgRateLimited)

			return
		}

		next(ctx)
	}
}

// checkRouteLimits records one hit against each limit of a route and returns
// the first limit exceeded, if any.
func checkRouteLimits(
	ctx context.Context,
	store ratelimit.Store,
	path, client string,
	limits []ratelimit.LimitConfig,
) (*ratelimit.LimitExceeded, error) {
	for _, limit := range limits {
		count, err := store.Record(ctx, routeKey(path, client, limit.Window), limit.Window)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", path, err)
		}

		if count > limit.Max {
			return &ratelimit.LimitExceeded{Count: count, Config: limit}, nil
		}
	}

	return nil, nil
}

func routeKey(path, client string, window time.Duration) string {
	return fmt.Sprintf("ratelimit:custom:%s:%s:%d", path, client, window.Milliseconds())
}

func clientKey(ctx huma.Context) string {
	return clientIP(ctx.Header, ctx.RemoteAddr())
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ctx.URL().Path
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&handlers.ErrorModel{Status: status, Message: msg})
}
