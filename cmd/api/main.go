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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/catalog"
	"github.com/noah-isme/situated-learning/internal/config"
	"github.com/noah-isme/situated-learning/internal/database"
	"github.com/noah-isme/situated-learning/internal/events"
	"github.com/noah-isme/situated-learning/internal/handler"
	"github.com/noah-isme/situated-learning/internal/middleware"
	"github.com/noah-isme/situated-learning/internal/router"
	"github.com/noah-isme/situated-learning/internal/service"
	"github.com/noah-isme/situated-learning/internal/submission"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	client, err := backend.New(backend.Config{
		ContentURL:  cfg.ContentAPIURL,
		FeedbackURL: cfg.FeedbackAPIURL,
		Timeout:     cfg.BackendTimeout,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create backend client: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("course cache disabled")
		} else {
			defer redisClient.Close()
		}
	}
	courses := catalog.NewCachedCourses(client, redisClient, cfg.CourseCacheTTL, logger)

	natsConn, err := events.Connect(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("activity events disabled")
	}
	publisher := events.NewPublisher(natsConn, cfg.NATSSubject, logger)
	defer publisher.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	sessionService := service.NewSessionService(func() *workflow.Session {
		return workflow.NewSession(workflow.Dependencies{
			Backend:              client,
			Courses:              courses,
			Publisher:            publisher,
			Validator:            validate,
			Logger:               logger,
			FeedbackDismissDelay: cfg.FeedbackDismissDelay,
		})
	}, logger, service.WithIdleTTL(cfg.SessionIdleTTL))
	statusService := service.NewBackendStatusService(client, logger)

	reader := submission.NewReader(cfg.SubmissionMaxMB, logger)
	stageLimit := middleware.RateLimit("stage", cfg.SessionRateLimit, time.Minute)

	sessionHandler := handler.NewSessionHandler(sessionService, reader, validate, stageLimit, logger)
	catalogHandler := handler.NewCatalogHandler(courses, client, statusService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.SubmissionMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler: sessionHandler,
		CatalogHandler: catalogHandler,
		Sessions:       sessionService,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessionService.Run(sweepCtx, time.Minute)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
