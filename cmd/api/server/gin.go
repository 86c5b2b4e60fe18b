package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "user-image-service/internal/adapter/gin/handler"
	ginrouter "user-image-service/internal/adapter/gin/router"
	"user-image-service/internal/adapter/ratelimit"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.UserHandler,
	images http.FileSystem,
	limiter *ratelimit.Limiter,
	healthy ginrouter.HealthFunc,
	ginAddr string,
	l *zap.Logger,
) *http.Server {
	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(handler, images, limiter, healthy, l)

	l.Info("Gin REST API configured", zap.String("address", ginAddr))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
