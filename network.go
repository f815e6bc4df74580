package actd

import (
	"context"
	"fmt"
	"net"

	"github.com/dogmatiq/actd/api"
	"github.com/dogmatiq/actd/internal/x/grpcx"
	"github.com/dogmatiq/dodeca/logging"
	"google.golang.org/grpc"
)

// listen returns the listener for the daemon's gRPC server.
func (d *Daemon) listen() (net.Listener, error) {
	if lis := d.opts.Network.Listener; lis != nil {
		return lis, nil
	}

	lis, err := net.Listen("tcp", d.opts.Network.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("unable to start gRPC listener: %w", err)
	}

	return lis, nil
}

// serve runs the gRPC server that exposes the daemon's endpoints.
func (d *Daemon) serve(ctx context.Context, lis net.Listener) error {
	defer lis.Close()

	server := grpc.NewServer(d.opts.Network.ServerOptions...)
	api.RegisterActivatorServer(server, d)
	api.RegisterSystemServer(server, d, d.pool)
	api.RegisterMonitorServer(server, d)

	logging.Log(
		d.opts.Logger,
		"listening for API requests on %s",
		lis.Addr(),
	)

	err := grpcx.Serve(ctx, lis, server, d.opts.GroupTimeout)
	return fmt.Errorf("gRPC server stopped: %w", err)
}

// localAddress returns the address that a process on the local host uses to
// reach a listener bound to addr.
func localAddress(addr net.Addr) string {
	if a, ok := addr.(*net.TCPAddr); ok && a.IP.IsUnspecified() {
		return net.JoinHostPort("127.0.0.1", fmt.Sprint(a.Port))
	}

	return addr.String()
}
