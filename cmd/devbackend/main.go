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
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/config"
	"github.com/noah-isme/situated-learning/internal/database"
	"github.com/noah-isme/situated-learning/internal/devserver"
	"github.com/noah-isme/situated-learning/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "devbackend").Logger()

	db, err := database.Open(cfg.DevDatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := devserver.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var generator ai.Generator = ai.NewTemplateGenerator()
	if cfg.OpenAIAPIKey != "" {
		openaiGenerator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai generator: %v", err)
		}
		generator = openaiGenerator
	}
	logger.Info().Str("generator", generator.Name()).Msg("content generator ready")

	server := devserver.New(devserver.Dependencies{
		DB:        db,
		Generator: generator,
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
		Logger:    logger,
	})

	app := devserver.NewApp(cfg.AppName+"-dev", server, &logger)

	go func() {
		if err := app.Listen(cfg.DevAddress()); err != nil {
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
