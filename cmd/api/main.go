package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-basico/internal/api/http"
	"github.com/spec-kit/crm-basico/internal/api/http/handlers"
	"github.com/spec-kit/crm-basico/internal/api/http/security"
	"github.com/spec-kit/crm-basico/internal/config"
	"github.com/spec-kit/crm-basico/internal/events"
	"github.com/spec-kit/crm-basico/internal/feed"
	"github.com/spec-kit/crm-basico/internal/observability"
	"github.com/spec-kit/crm-basico/internal/persistence"
	"github.com/spec-kit/crm-basico/internal/repository"
	"github.com/spec-kit/crm-basico/internal/service"
	"github.com/spec-kit/crm-basico/internal/web"
	"github.com/spec-kit/crm-basico/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.InitTracing(ctx, cfg.App, cfg.Tracing, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		if cfg.Postgres.Required {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		logger.Warn("postgres unavailable; starting in degraded mode", zap.Error(err))
	}
	defer pg.Close()

	var db repository.DB
	if pool := pg.PoolHandle(); pool != nil {
		db = pool
		if cfg.Postgres.RunMigrations {
			if err := persistence.EnsureSchema(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger, metrics))

	contactRepo := repository.NewContactRepository(db)
	contactService := service.NewContactService(contactRepo, dispatcher, logger)

	secOpts := security.Options{
		Production:      cfg.App.IsProduction(),
		CookieName:      cfg.Session.CookieName,
		MaxAge:          cfg.Session.MaxAge(),
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window(),
		Logger:          logger,
	}
	var feedCache fiber.Storage
	healthDeps := handlers.HealthDependencies{
		Environment:  cfg.App.Env,
		Store:        contactService,
		CacheEnabled: cfg.Redis.Enabled,
		Metrics:      metrics,
		Logger:       logger,
	}
	if redis != nil {
		secOpts.SessionStorage = redis.Storage("crm:session:")
		secOpts.LimiterStorage = redis.Storage("crm:limiter:")
		feedCache = redis.Storage("crm:feed:")
		healthDeps.Cache = redis
	}
	sessions := security.NewSessionStore(secOpts)
	posts := feed.NewClient(cfg.Feed, feedCache, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		Views:        web.NewViewEngine(),
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	if err := httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Contacts:  handlers.NewContactsHandler(contactService),
		Dashboard: handlers.NewDashboardHandler(contactService, posts, sessions),
		API:       handlers.NewAPIHandler(contactService),
		Health:    handlers.NewHealthHandler(healthDeps),
		Sessions:  sessions,
		Security:  secOpts,
		CookieKey: cfg.Session.Secret,
	}); err != nil {
		logger.Fatal("failed to register routes", zap.Error(err))
	}

	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("environment", cfg.App.Env),
			zap.Bool("database", db != nil),
			zap.Bool("redis", redis != nil))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	tctx, tcancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer tcancel()
	if err := shutdownTracing(tctx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
