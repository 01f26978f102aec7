package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/logging"
	"catalog/internal/repositories"
	"catalog/internal/server"
	"catalog/internal/services"
	"catalog/pkg/rabbitmq"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel, true)

	// --- Database ---
	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close(db)

	productRepo := repositories.NewGORMProductRepository(db)
	seedProducts(productRepo, cfg.SeedPath, logger)

	// --- Product events (optional) ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			logger.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		events = mqClient
		logger.Info("Publishing product events to RabbitMQ")
	}

	app := server.NewApp(server.AppDeps{
		Repo:           productRepo,
		Events:         events,
		Logger:         logger,
		FrontendOrigin: cfg.FrontendOrigin,
	})

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("API running on %s", cfg.ListenAddr())
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		logger.Errorf("Error during Fiber shutdown: %v", err)
	}
	logger.Info("Server gracefully stopped")
}

// seedProducts fills an empty store from the seed document. A broken seed
// file is reported and skipped so the API still starts.
func seedProducts(repo repositories.ProductRepository, path string, logger *logrus.Logger) {
	data := repositories.DefaultSeed()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("Seed skipped: %v", err)
			return
		}
		data = raw
	}

	n, err := repositories.SeedIfEmpty(context.Background(), repo, data)
	if err != nil {
		logger.Warnf("Seed skipped: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("Seeded %d products", n)
	}
}
