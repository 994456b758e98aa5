package container

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do"
	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/serroba/visitor-analytics/internal/handlers"
	"github.com/serroba/visitor-analytics/internal/health"
	"github.com/serroba/visitor-analytics/internal/middleware"
	"github.com/serroba/visitor-analytics/internal/observability"
	"github.com/serroba/visitor-analytics/internal/ratelimit"
	"github.com/serroba/visitor-analytics/internal/store"
	"github.com/serroba/visitor-analytics/internal/stream"
	"go.uber.org/zap"
)

// MetricsPackage provides a dedicated Prometheus registry and the collectors.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*prometheus.Registry, error) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return registry, nil
	})

	do.Provide(injector, func(i *do.Injector) (*observability.Metrics, error) {
		return observability.NewMetrics(do.MustInvoke[*prometheus.Registry](i)), nil
	})
}

// RateLimitPackage provides the counter store, in Redis when configured and
// in memory otherwise, and the limiters built on it.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		if do.MustInvoke[*Options](i).RedisAddr != "" {
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		}

		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		return ratelimit.NewPolicyLimiter(
			do.MustInvoke[ratelimit.Store](i),
			ratelimit.DefaultPolicy(int64(opts.RateLimitPerHour)),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.FixedWindowLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		return ratelimit.NewFixedWindowLimiter(
			do.MustInvoke[ratelimit.Store](i),
			int64(opts.StreamConnectsPerMinute),
			time.Minute,
		), nil
	})
}

// HTTPPackage provides the router, with the plain net/http routes mounted,
// and the huma API carrying the analytics and health operations.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		metrics := do.MustInvoke[*observability.Metrics](i)

		router := chi.NewMux()
		router.Use(middleware.CORS, observability.HTTPMetricsMiddleware(metrics))

		router.Handle("/metrics", observability.Handler(do.MustInvoke[*prometheus.Registry](i)))

		ws := stream.NewWebSocketHandler(do.MustInvoke[*stream.Hub](i), logger)
		if opts.StreamConnectsPerMinute > 0 {
			limiter := do.MustInvoke[*ratelimit.FixedWindowLimiter](i)
			router.With(middleware.ConnectionLimiter(limiter, logger)).Handle("/api/analytics/ws", ws)
		} else {
			router.Handle("/api/analytics/ws", ws)
		}

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		hub := do.MustInvoke[*stream.Hub](i)

		huma.NewError = handlers.NewError

		api := humachi.New(router, handlers.NewAPIConfig("Visitor Analytics", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.PolicyRateLimiter(api,
				do.MustInvoke[*ratelimit.PolicyLimiter](i),
				ratelimit.NewOperationScopeResolver(),
				logger,
			),
		)

		analyticsHandler := handlers.NewAnalyticsHandler(
			do.MustInvoke[*analytics.Ingestor](i),
			do.MustInvoke[*analytics.Reporter](i),
			do.MustInvoke[*analytics.SessionAggregator](i),
			do.MustInvoke[*analytics.UserAggregator](i),
			logger,
		)

		handlers.RegisterRoutes(api, analyticsHandler, handlers.NewStreamHandler(hub, logger), int64(opts.RateLimitPerHour))

		var redisChecker health.Checker
		if opts.RedisAddr != "" {
			redisChecker = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
		}

		health.RegisterRoutes(api, health.NewHandler(redisChecker, hub))

		return api, nil
	})
}
