package grpc

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health check name reported for the user service.
const ServiceName = "users"

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// HealthService keeps the gRPC health status in step with its dependencies.
type HealthService struct {
	server  *health.Server
	checks  map[string]Checker
	serving atomic.Bool
	down    atomic.Bool
	log     *zap.Logger
}

// NewHealthService creates a health service that starts out SERVING.
func NewHealthService(checks map[string]Checker, log *zap.Logger) *HealthService {
	s := &HealthService{
		server: health.NewServer(),
		checks: checks,
		log:    log,
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Server returns the grpc_health_v1 implementation to register.
func (s *HealthService) Server() healthpb.HealthServer {
	return s.server
}

// Check runs every dependency check once and updates the serving status.
func (s *HealthService) Check(ctx context.Context) bool {
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run checks dependencies every interval until ctx is done.
func (s *HealthService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			s.Check(checkCtx)
			cancel()
		}
	}
}

// Serving reports whether the last check succeeded and Shutdown was not called.
func (s *HealthService) Serving() bool {
	return s.serving.Load() && !s.down.Load()
}

// Shutdown reports NOT_SERVING permanently.
func (s *HealthService) Shutdown() {
	s.down.Store(true)
	s.server.Shutdown()
}

func (s *HealthService) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.serving.Store(st == healthpb.HealthCheckResponse_SERVING)
	s.server.SetServingStatus("", st)
	s.server.SetServingStatus(ServiceName, st)
}
