package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-image-service/internal/adapter/gin/handler"
	"user-image-service/internal/adapter/gin/middleware"
	"user-image-service/internal/adapter/ratelimit"
)

// ImagesURL is the URL prefix stored images are served under.
const ImagesURL = "/images"

// HealthFunc reports whether the service can serve requests.
type HealthFunc func() bool

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	userHandler *handler.UserHandler,
	images http.FileSystem,
	limiter *ratelimit.Limiter,
	healthy HealthFunc,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RateLimiter(limiter))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if healthy != nil && !healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "user-image-service",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "user-image-service",
		})
	})

	router.StaticFS(ImagesURL, images)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("", userHandler.CreateUser)
			users.GET("", userHandler.ListUsers)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
		}
	}

	return router
}
