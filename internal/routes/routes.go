package routes

import (
	"os"
	"strings"

	"quantcontrol/internal/handlers"
	"quantcontrol/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter() *gin.Engine {
	r := gin.Default()

	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	r.Use(corsMiddleware())
	r.Use(middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 20,
		Burst:             40,
	}))

	api := r.Group("/api/v1")
	{
		api.GET("/signals", handlers.ListSignals)
		api.GET("/signals/:id", handlers.GetSignal)
		api.GET("/trades", handlers.ListExecutedTrades)
		api.GET("/logs", handlers.ListSystemLogs)
		api.GET("/config/:key", handlers.GetSystemConfig)
		api.PUT("/config/:key", handlers.SetSystemConfig)
	}

	r.GET("/ws/signals", handlers.StreamSignals)

	return r
}

// corsMiddleware allows the dashboard origins listed in ALLOWED_ORIGINS
// (comma-separated).
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		var allowed bool
		for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" && trimmed == origin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
