package grpcx

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
)

// Serve runs s until ctx is canceled or an error occurs.
//
// When ctx is canceled the server stops accepting new calls and waits up to
// grace for in-flight calls to complete before closing their connections.
// The caller must never call s.Stop() or s.GracefulStop().
func Serve(
	ctx context.Context,
	lis net.Listener,
	s *grpc.Server,
	grace time.Duration,
) error {
	// Create a context that is guaranteed to be cancelled when this function
	// exits. This prevents a leak in the goroutine below when the server exits
	// prematurely.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-ctx.Done()
		stop(s, grace)
	}()

	err := s.Serve(lis)

	// If the server exits cleanly, it is because it was stopped, which only
	// happens when the context is canceled. It may also have been stopped
	// before it started serving.
	if err == nil || (err == grpc.ErrServerStopped && ctx.Err() != nil) {
		<-ctx.Done()
		<-stopped
		err = ctx.Err()
	}

	return err
}

// stop stops s gracefully, or forcefully once grace has elapsed.
func stop(s *grpc.Server, grace time.Duration) {
	if grace <= 0 {
		s.Stop()
		return
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
	case <-t.C:
		s.Stop()
		<-done
	}
}
