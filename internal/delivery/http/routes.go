package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freshcheck/backend/config"
)

// SetupRouter creates and configures the Gin router. metricsHandler may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, metricsHandler http.Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		products := v1.Group("/products")
		{
			products.GET("/search", handler.SearchProducts)
			products.GET("/:barcode", handler.GetProduct)
		}

		v1.GET("/alternatives", handler.GetAlternatives)

		history := v1.Group("/history")
		{
			history.GET("", handler.GetHistory)
			history.DELETE("", handler.ClearHistory)
		}
	}

	return router
}
