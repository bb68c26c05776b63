package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libredis "evregistry/backend/libs/redis"
	"evregistry/backend/libs/telemetry"
	"evregistry/backend/services/station-registry/internal/cache"
	"evregistry/backend/services/station-registry/internal/config"
	"evregistry/backend/services/station-registry/internal/db"
	"evregistry/backend/services/station-registry/internal/events"
	httpserver "evregistry/backend/services/station-registry/internal/http"
	"evregistry/backend/services/station-registry/internal/http/handlers"
	"evregistry/backend/services/station-registry/internal/http/middleware"
	"evregistry/backend/services/station-registry/internal/metrics"
	"evregistry/backend/services/station-registry/internal/password"
	"evregistry/backend/services/station-registry/internal/repository"
	"evregistry/backend/services/station-registry/internal/service"
)

const (
	serviceName    = "station-registry"
	serviceVersion = "1.0.0"

	hubPingInterval = 30 * time.Second
	hubWriteTimeout = 10 * time.Second
)

// App wires station-registry dependencies.
type App struct {
	server        *httpserver.Server
	hub           *events.Hub
	db            *sql.DB
	redisClient   *redis.Client
	traceShutdown func(context.Context) error
	logger        *zap.Logger
}

// New constructs the application graph. It blocks until Postgres is reachable or ctx ends.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.UsingDevSecret {
		logger.Warn("REGISTRY_JWT_SECRET is not set, signing tokens with the insecure development secret")
	}

	traceShutdown, err := telemetry.InitTraceProvider(ctx, cfg.Tracing.Endpoint, serviceName, serviceVersion)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN, cfg.ReconnectDelay(), logger)
	if err != nil {
		_ = traceShutdown(context.Background())
		return nil, err
	}
	logger.Info("connected to postgres")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			_ = traceShutdown(context.Background())
			return nil, err
		}
	}

	a := &App{db: sqlDB, traceShutdown: traceShutdown, logger: logger}

	var stationCache service.StationCache
	redisClient, err := libredis.Connect(ctx, libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	switch {
	case errors.Is(err, libredis.ErrDisabled):
		logger.Info("station cache disabled")
	case err != nil:
		logger.Warn("redis unavailable, station cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	default:
		a.redisClient = redisClient
		stationCache = cache.NewStationCache(redisClient, cfg.CacheTTL())
	}

	m := metrics.New()
	a.hub = events.NewHub(hubPingInterval, hubWriteTimeout, logger.Named("events"))
	m.RegisterGauge("registry_event_subscribers", "Connected station change feed subscribers.", func() float64 {
		return float64(a.hub.Count())
	})

	userRepo := repository.NewUserRepository(sqlDB)
	stationRepo := repository.NewStationRepository(sqlDB)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWTExpiration())
	authSvc := service.NewAuthService(userRepo, password.NewBcryptHasher(cfg.Auth.BcryptCost), tokenSvc, cfg.Auth.AdminEmail, logger)
	stationSvc := service.NewStationService(stationRepo, stationCache, a.hub, m, cfg.Stations.AdminOnlyWrites, logger)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandlers:     handlers.NewAuthHandlers(authSvc, m, logger),
		StationsHandlers: handlers.NewStationsHandlers(stationSvc, logger),
		Events:           a.hub.ServeWS,
		HealthHandler:    handlers.NewHealthHandler(),
		TestHandler:      handlers.NewTestHandler(),
		Metrics:          m.Handler(),
	}, middleware.SessionGuard(tokenSvc, m, logger))

	handler := middleware.Chain(router,
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.HTTP.AllowedOrigins, cfg.IsProduction()),
		middleware.Metrics(m),
	)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), handler, logger)
	return a, nil
}

// Run serves HTTP and the event hub until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.hub.Run(ctx) })
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
}
