package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/analyzer"
	"github.com/subscout/subreddit-analyzer/internal/config"
	"github.com/subscout/subreddit-analyzer/internal/enrichment"
	"github.com/subscout/subreddit-analyzer/internal/notifications"
	"github.com/subscout/subreddit-analyzer/internal/scheduler"
	"github.com/subscout/subreddit-analyzer/internal/sources"
	"github.com/subscout/subreddit-analyzer/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Subreddit Analyzer")

	// One Redis connection serves both report storage and the in-flight guard
	var rdb *redis.Client
	if cfg.StorageBackend == "redis" || cfg.GuardBackend == "redis" {
		rdb, err = storage.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
	}

	storageClient, err := storage.New(cfg, rdb)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	var guard analyzer.Guard
	if cfg.GuardBackend == "redis" {
		guard = analyzer.NewRedisGuard(rdb, cfg.AnalysisLockTTL)
	}

	analyzerService := analyzer.NewService(cfg,
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent),
		newEnricher(cfg),
		storageClient,
		notifications.NewService(cfg),
		guard,
	)

	schedulerService := scheduler.NewService(cfg, analyzerService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     newRouter(analyzerService),
		ReadTimeout: 15 * time.Second,
		// analyses wait on the completion endpoint, retries included
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newEnricher returns nil when no API key is configured, which keeps reports numeric-only
func newEnricher(cfg *config.Config) enrichment.Enricher {
	client := enrichment.NewClient(enrichment.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
		Backoff:     cfg.LLMBackoff,
	})
	if !client.IsEnabled() {
		logrus.Warn("LLM_API_KEY not set, narrative enrichment disabled")
		return nil
	}
	return client
}
