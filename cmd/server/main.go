package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/freshcheck/backend/config"
	httpDelivery "github.com/freshcheck/backend/internal/delivery/http"
	"github.com/freshcheck/backend/internal/infrastructure/cache"
	"github.com/freshcheck/backend/internal/infrastructure/history"
	"github.com/freshcheck/backend/internal/infrastructure/metrics"
	"github.com/freshcheck/backend/internal/infrastructure/openfoodfacts"
	"github.com/freshcheck/backend/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	log.WithFields(log.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache":       cfg.Cache.Type,
		"cache_ttl":   cfg.Cache.TTL,
		"history":     cfg.History.Backend,
		"scoring":     cfg.Scoring.Profile,
	}).Info("Starting FreshCheck Backend v1.0.0")

	// Initialize infrastructure dependencies
	reg := metrics.NewRegistry()

	memoryCache := cache.NewMemoryCache()
	defer memoryCache.Close()
	reg.TrackCacheSize(memoryCache.Size)

	historyStore, err := history.Open(cfg.History.Backend, cfg.History.Path)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer historyStore.Close()

	offClient := openfoodfacts.NewClient(openfoodfacts.ClientConfig{
		SearchURL:             cfg.OpenFoodFacts.SearchURL,
		UserAgent:             cfg.OpenFoodFacts.UserAgent,
		Timeout:               cfg.OpenFoodFacts.Timeout,
		ProductReadsPerMinute: cfg.RateLimit.ProductReads,
		SearchesPerMinute:     cfg.RateLimit.Searches,
	})

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		offClient.SetDebug(true)
		log.Debug("Open Food Facts client debug mode enabled")
	}

	log.WithFields(log.Fields{
		"primary": cfg.OpenFoodFacts.PrimaryURL,
		"mirrors": cfg.OpenFoodFacts.MirrorURLs,
	}).Info("Open Food Facts sources configured")

	// Initialize usecase layer
	scoringConfig, err := usecase.ScoringConfigForProfile(cfg.Scoring.Profile)
	if err != nil {
		log.Fatalf("Failed to configure scoring: %v", err)
	}

	resolver := usecase.NewResolver(offClient, usecase.ResolverConfig{
		PrimaryURL:     cfg.OpenFoodFacts.PrimaryURL,
		MirrorURLs:     cfg.OpenFoodFacts.MirrorURLs,
		AttemptTimeout: cfg.OpenFoodFacts.Timeout,
	}, reg)

	productService := usecase.NewProductService(
		memoryCache,
		offClient,
		resolver,
		usecase.NewScorer(scoringConfig),
		usecase.NewHistoryService(historyStore, cfg.History.MaxEntries, reg),
		usecase.ProductServiceConfig{CacheTTL: cfg.Cache.TTL},
		reg,
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(productService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, reg.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

// setupLogging configures the global logrus logger: text in development, JSON otherwise
func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	format := cfg.Log.Format
	if format == "" {
		format = "json"
		if cfg.Server.Environment == "development" {
			format = "text"
		}
	}

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
