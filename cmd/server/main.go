package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/postgres"
	"github.com/pricelens/backend/internal/infrastructure/shopify"
	"github.com/pricelens/backend/internal/logger"
	"github.com/pricelens/backend/internal/metrics"
	"github.com/pricelens/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer zlog.Sync()

	zlog.Info("starting pricelens backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	// Connect to PostgreSQL
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MaxIdle:  cfg.Database.MaxIdle,
	})
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("database connected",
		zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	// Repositories
	catalogRepo := postgres.NewCatalogRepository(db)
	enrichmentRepo := postgres.NewEnrichmentRepository(db)
	benchmarkRepo := postgres.NewBenchmarkRepository(db)
	memoryCache := cache.NewMemoryCache()

	// Platform client. Matching against explicit product lists works without
	// credentials; platform-dependent endpoints return 412 instead.
	platform := shopify.NewClient(cfg.Shopify.ShopDomain, cfg.Shopify.AccessToken, cfg.Shopify.APIVersion)
	if platform.Configured() {
		zlog.Info("platform client configured", zap.String("shop", cfg.Shopify.ShopDomain))
	} else {
		zlog.Warn("platform credentials not configured; live pulls and writes disabled")
	}

	// Usecase layer
	matchingService := usecase.NewMatchingService(
		catalogRepo, enrichmentRepo, platform, zlog,
		usecase.MatchingConfig{
			AcceptanceThreshold: cfg.Matching.AcceptanceThreshold,
			CandidateLimit:      cfg.Matching.CandidateLimit,
		},
	)
	priceAdjuster := usecase.NewPriceAdjuster(
		enrichmentRepo, platform, zlog,
		usecase.PriceAdjustConfig{WriteInterval: cfg.PriceSync.WriteInterval},
	)
	syncService := usecase.NewSyncService(
		enrichmentRepo, platform, zlog,
		usecase.SyncConfig{WriteInterval: cfg.PriceSync.WriteInterval},
	)
	benchmarkService := usecase.NewBenchmarkService(
		benchmarkRepo, memoryCache, zlog, cfg.Benchmarks.CacheTTL,
	)

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// HTTP layer
	handler := httpDelivery.NewHandler(
		matchingService, priceAdjuster, syncService, benchmarkService,
		enrichmentRepo, m, zlog,
	)
	router := httpDelivery.SetupRouter(cfg, handler, zlog, registry)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zlog.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
