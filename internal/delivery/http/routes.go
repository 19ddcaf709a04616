package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check and metrics endpoints
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		match := v1.Group("/match")
		{
			match.POST("/run", handler.RunMatch)
		}

		enrichments := v1.Group("/enrichments")
		{
			enrichments.GET("", handler.ListEnrichments)
			enrichments.GET("/stats", handler.EnrichmentStats)
			enrichments.PUT("/:id/status", handler.UpdateStatus)
			enrichments.POST("/status", handler.BulkUpdateStatus)
		}

		prices := v1.Group("/prices")
		{
			prices.POST("/adjust", handler.AdjustPrices)
		}

		platform := v1.Group("/platform")
		{
			platform.POST("/push", handler.PushEnrichments)
		}

		benchmarks := v1.Group("/benchmarks")
		{
			benchmarks.GET("", handler.ListBenchmarks)
			benchmarks.POST("/recompute", handler.RecomputeBenchmarks)
		}
	}

	return router
}
