package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcadapter "user-image-service/internal/adapter/grpc"
	"user-image-service/internal/adapter/grpc/middleware"
	"user-image-service/internal/adapter/ratelimit"
	"user-image-service/pkg/logger"
)

// SetupGRPC creates and configures the gRPC server
func SetupGRPC(health *grpcadapter.HealthService, limiter *ratelimit.Limiter, l *zap.Logger) *grpc.Server {
	// Create gRPC server with request ID and rate limit interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.RateLimit(limiter),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, health.Server())
	reflection.Register(grpcServer)

	l.Info("gRPC server configured", zap.Strings("services", []string{healthpb.Health_ServiceDesc.ServiceName}))

	return grpcServer
}
