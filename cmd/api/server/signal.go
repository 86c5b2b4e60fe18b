package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals stop the service when no others are given.
var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// WithSignal returns a context canceled on the first of the given signals,
// SIGINT or SIGTERM by default. The returned stop releases the signal handler.
func WithSignal(ctx context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = shutdownSignals
	}
	return signal.NotifyContext(ctx, sigs...)
}
