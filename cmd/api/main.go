package main

import (
	"context"
	"fmt"
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

	"github.com/noah-isme/gema-grader/internal/compiler"
	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/pkg/ai"
	cloud "github.com/noah-isme/gema-grader/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	rubric, err := cfg.GradingRubric()
	if err != nil {
		log.Fatalf("invalid rubric: %v", err)
	}

	db, driver, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	logger.Info().Str("driver", driver).Msg("database ready")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, dashboard cache and event relay disabled")
		} else {
			defer redisClient.Close()
			probes["redis"] = func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, cross-node events disabled")
		} else {
			defer natsConn.Drain()
			probes["nats"] = func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats status %s", natsConn.Status())
				}
				return nil
			}
		}
	}

	adapter, closeCompiler := compiler.NewChain(rootCtx, compiler.ChainConfig{
		DockerEnabled: cfg.DockerEnabled,
		DockerHost:    cfg.DockerHost,
		Local: compiler.LocalConfig{
			Image:          cfg.JavaImage,
			CompileTimeout: cfg.CompileTimeout,
			RunTimeout:     cfg.RunTimeout,
			MemoryLimitMB:  int64(cfg.CodeRunMemoryMB),
			CPUShares:      int64(cfg.CodeRunCPUShares),
		},
		RemoteServices: cfg.RemoteServices,
	}, logger)
	defer func() {
		if err := closeCompiler(); err != nil {
			logger.Warn().Err(err).Msg("failed to close docker client")
		}
	}()

	grader := grading.NewGrader(adapter, rubric, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	var archiver service.SourceArchiver
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		archive, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = archive
	}

	var reviewer ai.Reviewer
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIReviewer(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai reviewer: %v", err)
		}
		reviewer = openAI
	}

	store := repository.NewSubmissionStore(db)
	professorRepo := repository.NewProfessorRepository(db)

	eventService := service.NewGradingEventService(redisClient, cfg.EventsTopic, natsConn, logger)
	eventService.Start(rootCtx)

	dashboardService := service.NewDashboardService(store, redisClient, cfg.DashboardCacheTTL, validate, logger)
	submissionService := service.NewSubmissionService(store, grader, archiver, dashboardService, eventService, validate, logger, service.SubmissionServiceConfig{
		MaxFileKB: cfg.UploadMaxFileKB,
	})
	authService := service.NewAuthService(professorRepo, validate, cfg.JWTSecret, cfg.JWTTokenTTL, logger)
	reviewService := service.NewReviewService(store, reviewer, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (2*cfg.UploadMaxFileKB + 64) * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		AuthHandler:       handler.NewAuthHandler(authService, validate, logger),
		DashboardHandler:  handler.NewDashboardHandler(dashboardService, reviewService, logger),
		EventsHandler:     handler.NewEventsHandler(eventService, logger),
		Health:            handler.HealthCheck(cfg, adapter.Steps(), probes),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		SubmitLimiter:     middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
