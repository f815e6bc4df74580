package actd

import (
	"fmt"
	"net"
	"time"

	"github.com/dogmatiq/actd/api"
	"google.golang.org/grpc"
)

var (
	// DefaultListenAddress is the default TCP address for the gRPC listener.
	//
	// It is overridden by the WithListenAddress() option.
	DefaultListenAddress = ":1098"

	// DefaultCallTimeout is the default timeout for calls to the
	// instantiators of group processes.
	//
	// It is overridden by the WithCallTimeout() option.
	DefaultCallTimeout = api.DefaultCallTimeout
)

// NetworkOption configures the networking-related behavior of a daemon.
type NetworkOption func(*networkOptions)

// WithNetworking returns a daemon option that serves the daemon's activation
// endpoints over gRPC.
//
// Group processes started by the daemon attach to it over the network, so
// this option is required unless every group is attached by other means.
func WithNetworking(options ...NetworkOption) DaemonOption {
	n := resolveNetworkOptions(options...)

	return func(opts *daemonOptions) {
		opts.Network = n
	}
}

// WithListenAddress returns a network option that sets the TCP address for the
// daemon's gRPC listener.
//
// If this option is omitted or addr is empty, DefaultListenAddress is used.
func WithListenAddress(addr string) NetworkOption {
	if addr != "" {
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			panic(fmt.Sprintf("invalid listen address: %s", err))
		}

		if _, err := net.LookupPort("tcp", port); err != nil {
			panic(fmt.Sprintf("invalid listen address: %s", err))
		}
	}

	return func(opts *networkOptions) {
		opts.ListenAddress = addr
	}
}

// WithListener returns a network option that serves the daemon's endpoints
// on an existing listener instead of listening on the listen address.
func WithListener(lis net.Listener) NetworkOption {
	return func(opts *networkOptions) {
		opts.Listener = lis
	}
}

// WithServerOptions returns a network option that adds gRPC server options.
func WithServerOptions(options ...grpc.ServerOption) NetworkOption {
	return func(opts *networkOptions) {
		opts.ServerOptions = append(opts.ServerOptions, options...)
	}
}

// WithDialOptions returns a network option that adds gRPC dial options used
// to connect to the instantiators of group processes.
func WithDialOptions(options ...grpc.DialOption) NetworkOption {
	return func(opts *networkOptions) {
		opts.DialOptions = append(opts.DialOptions, options...)
	}
}

// WithCallTimeout returns a network option that sets the timeout for calls to
// the instantiators of group processes.
//
// If this option is omitted or d is zero, DefaultCallTimeout is used.
func WithCallTimeout(d time.Duration) NetworkOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *networkOptions) {
		opts.CallTimeout = d
	}
}

// networkOptions is a container for a fully-resolved set of networking
// options.
type networkOptions struct {
	ListenAddress string
	Listener      net.Listener
	ServerOptions []grpc.ServerOption
	DialOptions   []grpc.DialOption
	CallTimeout   time.Duration
}

// resolveNetworkOptions returns a fully-populated set of network options built
// from the given set of option functions.
func resolveNetworkOptions(options ...NetworkOption) *networkOptions {
	opts := &networkOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.ListenAddress == "" {
		opts.ListenAddress = DefaultListenAddress
	}

	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	return opts
}
