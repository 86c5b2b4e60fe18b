package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *HealthService, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthService_InitiallyServing(t *testing.T) {
	s := NewHealthService(nil, zaptest.NewLogger(t))

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ServiceName))
}

func TestHealthService_Check(t *testing.T) {
	var dbErr error
	s := NewHealthService(map[string]Checker{
		"database": func(ctx context.Context) error { return dbErr },
	}, zaptest.NewLogger(t))

	dbErr = errors.New("connection refused")
	assert.False(t, s.Check(context.Background()))
	assert.False(t, s.Serving())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ServiceName))

	dbErr = nil
	assert.True(t, s.Check(context.Background()))
	assert.True(t, s.Serving())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ServiceName))
}

func TestHealthService_Run(t *testing.T) {
	calls := make(chan struct{}, 10)
	s := NewHealthService(map[string]Checker{
		"database": func(ctx context.Context) error {
			calls <- struct{}{}
			return errors.New("down")
		},
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("check was not run")
	}
	cancel()
	<-done

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ""))
}

func TestHealthService_Shutdown(t *testing.T) {
	s := NewHealthService(nil, zaptest.NewLogger(t))
	s.Shutdown()

	// Later checks cannot flip the status back
	s.Check(context.Background())
	assert.False(t, s.Serving())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ServiceName))
}
