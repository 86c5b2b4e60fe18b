package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"user-image-service/cmd/api/di"
	"user-image-service/internal/config"
)

// healthInterval is how often dependency checks refresh the health status.
const healthInterval = 15 * time.Second

// Server struct holds all server dependencies
type Server struct {
	Config    *config.Config
	Logger    *zap.Logger
	Container *di.Container
	GRPC      *grpc.Server
	HTTP      *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, c *di.Container) *Server {
	return &Server{
		Config:    cfg,
		Logger:    l,
		Container: c,
		GRPC:      SetupGRPC(c.Health, c.RateLimiter, l),
		HTTP: SetupGinServer(
			c.GinHandler,
			c.Images.HTTPDir(),
			c.RateLimiter,
			c.Health.Serving,
			httpAddress(cfg),
			l,
		),
	}
}

// Start runs the gRPC and HTTP servers and the health checker until one of
// the servers fails or ctx is done. Either way both servers are stopped
// before Start returns.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	grpcLis, err := lc.Listen(ctx, "tcp", grpcAddress(s.Config))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress(s.Config), err)
	}
	httpLis, err := lc.Listen(ctx, "tcp", s.HTTP.Addr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.HTTP.Addr, err)
	}

	return s.serve(ctx, grpcLis, httpLis)
}

func (s *Server) serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("REST API running", zap.String("address", httpLis.Addr().String()))
		if err := s.HTTP.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Container.Health.Run(gctx, healthInterval)
		return nil
	})

	// Stops the remaining servers once ctx is done or any server fails
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.App.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown flips health to NOT_SERVING and stops both servers, waiting for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Container.Health.Shutdown()

	var errs []error

	s.Logger.Info("shutting down HTTP server...")
	if err := s.HTTP.Shutdown(ctx); err != nil {
		s.Logger.Error("failed to shutdown HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	s.Logger.Info("shutting down gRPC server...")
	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.Logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.GRPC.Stop()
	}

	return errors.Join(errs...)
}

// grpcAddress returns the gRPC server address
func grpcAddress(cfg *config.Config) string {
	return ":" + cfg.App.GRPCPort
}

// httpAddress returns the HTTP server address
func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
