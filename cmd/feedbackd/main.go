package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyfeedback/adapters/api"
	"studyfeedback/adapters/postgres"
	"studyfeedback/internal"
	"studyfeedback/internal/config"
	"studyfeedback/internal/container"
)

func main() {
	// Load environment variables from .env file
	config.LoadDotEnv()

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Log.Level), appConfig.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database and run migrations
	db, err := postgres.Open(ctx, appConfig.Database.Driver, appConfig.Database.URL)
	if err != nil {
		logger.Error("failed to initialize database: %v", err)
		os.Exit(1)
	}

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		logger.Error("failed to create application container: %v", err)
		os.Exit(1)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(ctx, db); err != nil {
		logger.Error("failed to initialize container: %v", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewApp(appContainer.FeedbackService, appContainer.Renderer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown: %v", err)
		}
	}()

	logger.Info("starting feedback server on port %s (driver=%s)", appConfig.Server.Port, appConfig.Database.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed: %v", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
