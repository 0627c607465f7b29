package app

import (
	"net/http"

	"github.com/albumly/billing-svc/internal/adapter/inbound/gin"
	"github.com/albumly/billing-svc/internal/adapter/outbound/postgres"
	redisadapter "github.com/albumly/billing-svc/internal/adapter/outbound/redis"
	"github.com/albumly/billing-svc/internal/domain/billing"
	"github.com/albumly/billing-svc/internal/infra/cache"
	"github.com/albumly/billing-svc/internal/port/inbound"
	"github.com/albumly/billing-svc/internal/port/outbound"
	sharedcache "github.com/albumly/billing-svc/internal/shared/cache"
	"github.com/albumly/billing-svc/internal/shared/config"
	"github.com/albumly/billing-svc/internal/shared/database"
	"github.com/albumly/billing-svc/internal/shared/logger"
	"github.com/albumly/billing-svc/internal/utils/metrics"
	"github.com/albumly/billing-svc/internal/utils/middleware"
	gingonic "github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Compile-time check
var _ inbound.LimitsDomain = (*billing.Domain)(nil)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideDatabase,
	ProvideRedisClient,
)

// ProvideLogger creates the zap logger. The cleanup flushes buffered entries.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func()) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return log, func() { _ = log.Sync() }
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the application metrics.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(cfg.Metrics.Namespace, reg)
}

// ProvideDatabase opens PostgreSQL, times every query and optionally migrates.
func ProvideDatabase(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}

	if err := database.InstrumentQueries(db, m); err != nil {
		cleanup()
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return db, cleanup, nil
}

// ProvideRedisClient connects to Redis. Redis is optional: without it plans
// are read from the database and idempotency and rate limiting are off.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, func()) {
	if cfg.Redis.Address == "" {
		return nil, func() {}
	}
	client, err := sharedcache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis connection failed, continuing without cache", zap.Error(err))
		return nil, func() {}
	}
	return client, func() { _ = sharedcache.Close(client) }
}

// ===== Limits Providers =====

// LimitsSet provides the limits domain and its adapters.
var LimitsSet = wire.NewSet(
	postgres.NewSubscriptionAdapter,
	postgres.NewUsageAdapter,
	ProvidePlanDatabase,
	ProvideLimitsConfig,
	billing.NewLimitsDomain,
	wire.Bind(new(inbound.LimitsDomain), new(*billing.Domain)),
	gin.NewLimitsHandler,
)

// ProvidePlanDatabase returns the plan adapter, fronted by the Redis cache
// when Redis is available.
func ProvidePlanDatabase(
	cfg *config.Config,
	db *gorm.DB,
	redis goredis.UniversalClient,
	m *metrics.Metrics,
	log *zap.Logger,
) outbound.PlanDatabasePort {
	plans := postgres.NewPlanAdapter(db)
	if redis == nil || cfg.Limits.PlanCacheTTL == 0 {
		return plans
	}
	return cache.NewCachedPlanDatabase(
		plans,
		redisadapter.NewPlanCache(redis),
		cfg.Limits.PlanCacheTTL,
		cache.BreakerConfig{
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.FailureThreshold,
		},
		m,
		log,
	)
}

// ProvideLimitsConfig maps configuration onto the limits domain settings.
func ProvideLimitsConfig(cfg *config.Config) billing.Config {
	return billing.Config{ReserveRetries: cfg.Limits.ReserveRetries}
}

// ===== HTTP Providers =====

// HTTPSet provides the router and its middleware collaborators.
var HTTPSet = wire.NewSet(
	ProvideTokenVerifier,
	ProvideIdempotencyStore,
	ProvideRateLimiter,
	ProvideRouter,
)

// ProvideTokenVerifier returns nil when bearer-token checks are disabled.
func ProvideTokenVerifier(cfg *config.Config) middleware.TokenVerifier {
	if !cfg.Auth.Enabled {
		return nil
	}
	return middleware.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

// ProvideIdempotencyStore returns nil without Redis.
func ProvideIdempotencyStore(redis goredis.UniversalClient) outbound.IdempotencyStorePort {
	if redis == nil {
		return nil
	}
	return redisadapter.NewIdempotencyStore(redis)
}

// ProvideRateLimiter returns nil without Redis.
func ProvideRateLimiter(redis goredis.UniversalClient) outbound.RateLimiterPort {
	if redis == nil {
		return nil
	}
	return redisadapter.NewRateLimiter(redis)
}

// ProvideRouter assembles the Gin engine.
func ProvideRouter(
	cfg *config.Config,
	log *zap.Logger,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	handler inbound.LimitsHttpPort,
	verifier middleware.TokenVerifier,
	idempotency outbound.IdempotencyStorePort,
	limiter outbound.RateLimiterPort,
) *gingonic.Engine {
	gingonic.SetMode(ginMode(cfg.Server.Mode))

	r := gingonic.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))

	r.GET("/health", func(c *gingonic.Context) {
		c.JSON(http.StatusOK, gingonic.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gingonic.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	gin.RegisterRoutes(r, handler, limitsGuards(cfg, log, verifier, idempotency, limiter)...)
	return r
}

// limitsGuards returns the middleware chain for /limits routes.
func limitsGuards(
	cfg *config.Config,
	log *zap.Logger,
	verifier middleware.TokenVerifier,
	idempotency outbound.IdempotencyStorePort,
	limiter outbound.RateLimiterPort,
) []gingonic.HandlerFunc {
	var guards []gingonic.HandlerFunc
	if verifier != nil {
		guards = append(guards, middleware.Auth(verifier), middleware.RequireSelf("user_id"))
	}
	guards = append(guards,
		middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Limit:  cfg.Limits.RateLimit,
			Window: cfg.Limits.RateLimitWindow,
		}, log),
		middleware.Idempotency(idempotency, middleware.IdempotencyConfig{
			TTL: cfg.Limits.IdempotencyTTL,
		}, log),
	)
	return guards
}

func ginMode(mode string) string {
	switch mode {
	case gingonic.DebugMode, gingonic.TestMode:
		return mode
	default:
		return gingonic.ReleaseMode
	}
}

// ===== Combined Provider Set =====

// AppSet combines all provider sets.
var AppSet = wire.NewSet(
	InfraSet,
	LimitsSet,
	HTTPSet,
)
