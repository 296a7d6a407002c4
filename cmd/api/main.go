package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/codearena-api/internal/config"
	"github.com/noah-isme/codearena-api/internal/database"
	"github.com/noah-isme/codearena-api/internal/handler"
	"github.com/noah-isme/codearena-api/internal/middleware"
	"github.com/noah-isme/codearena-api/internal/observability"
	"github.com/noah-isme/codearena-api/internal/repository"
	"github.com/noah-isme/codearena-api/internal/router"
	"github.com/noah-isme/codearena-api/internal/service"
	"github.com/noah-isme/codearena-api/pkg/catalog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLife,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without cache and scheduler lease")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, leaderboard events stay on redis")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	graphQL, err := catalog.NewGraphQLClient(catalog.GraphQLConfig{
		BaseURL: cfg.CatalogBaseURL,
		Timeout: cfg.CatalogTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create catalog client: %v", err)
	}
	catalogClient := catalog.NewCachedClient(graphQL, redisClient, cfg.CatalogCacheTTL, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	contestRepo := repository.NewContestRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	userRepo := repository.NewUserRepository(db)

	cache := service.NewLeaderboardCache(redisClient, cfg.LeaderboardCacheTTL, logger)
	events := service.NewLeaderboardEvents(redisClient, cfg.EventsChannel, natsConn, logger)

	leaderboardService := service.NewLeaderboardService(contestRepo, leaderboardRepo, userRepo, cache, events, logger)
	contestService := service.NewContestService(service.ContestServiceConfig{
		Contests:             contestRepo,
		Users:                userRepo,
		Catalog:              catalogClient,
		Cache:                cache,
		Events:               events,
		Validator:            validate,
		MaxParticipantsLimit: cfg.MaxParticipantsLimit,
		Logger:               logger,
	})
	lifecycleService := service.NewContestLifecycleService(contestRepo, logger)
	syncService := service.NewSubmissionSyncService(service.SubmissionSyncConfig{
		Contests:    contestRepo,
		Leaderboard: leaderboardRepo,
		Users:       userRepo,
		Scoring:     leaderboardService,
		Catalog:     catalogClient,
		FetchLimit:  cfg.SubmissionFetchLimit,
		Concurrency: cfg.SyncConcurrency,
		Logger:      logger,
	})
	userService := service.NewUserService(userRepo, validate, logger)

	scheduler := service.NewContestScheduler(service.ContestSchedulerConfig{
		Lifecycle:   lifecycleService,
		Sync:        syncService,
		Contests:    contestRepo,
		Redis:       redisClient,
		Interval:    cfg.StatusSweepInterval,
		SyncEnabled: cfg.SyncEnabled,
		Logger:      logger,
	})

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return nats.ErrConnectionClosed
				}
				return nil
			},
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		ContestHandler:     handler.NewContestHandler(contestService, lifecycleService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, syncService, logger, cfg.StreamKeepAlive),
		UserHandler:        handler.NewUserHandler(userService, leaderboardService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:       probes,
	})

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	events.Start(backgroundCtx)
	go scheduler.Start(backgroundCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopBackground)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
