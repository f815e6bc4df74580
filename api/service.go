package api

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	activatorService    = "actd.Activator"
	systemService       = "actd.ActivationSystem"
	monitorService      = "actd.ActivationMonitor"
	instantiatorService = "actd.Instantiator"
)

// method returns the description of a unary gRPC method that is implemented
// by fn.
//
// If local is true, the method may only be called by clients on the same
// host as the server.
func method[Req, Res any](
	service, name string,
	local bool,
	fn func(context.Context, *Req) (*Res, error),
) grpc.MethodDesc {
	info := &grpc.UnaryServerInfo{
		FullMethod: "/" + service + "/" + name,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if local {
			if p, ok := peer.FromContext(ctx); !ok || !IsLocal(p.Addr) {
				return nil, status.Errorf(
					codes.PermissionDenied,
					"%s may only be called from the local host",
					info.FullMethod,
				)
			}
		}

		res, err := fn(ctx, req.(*Req))
		if err != nil {
			return nil, toStatus(ctx, err)
		}

		return res, nil
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(
			srv interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor,
		) (interface{}, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return handler(ctx, req)
			}

			i := *info
			i.Server = srv

			return interceptor(ctx, req, &i, handler)
		},
	}
}

// register adds a service with the given methods to s.
func register(s grpc.ServiceRegistrar, name string, impl interface{}, methods ...grpc.MethodDesc) {
	s.RegisterService(
		&grpc.ServiceDesc{
			ServiceName: name,
			HandlerType: (*interface{})(nil),
			Methods:     methods,
		},
		impl,
	)
}

// invoke calls a unary method of a service, converting the error it returns,
// if any, to an activation error.
func invoke[Res any](
	ctx context.Context,
	conn grpc.ClientConnInterface,
	service, name string,
	req interface{},
) (*Res, error) {
	var (
		res     Res
		trailer metadata.MD
	)

	if err := conn.Invoke(
		ctx,
		"/"+service+"/"+name,
		req,
		&res,
		grpc.CallContentSubtype(CodecName),
		grpc.Trailer(&trailer),
	); err != nil {
		return nil, fromStatus(err, trailer)
	}

	return &res, nil
}

// IsLocal returns true if addr is an address on the local host.
//
// Unix sockets and in-memory connections are considered local. Any other
// address is local only if its host is a loopback IP address.
func IsLocal(addr net.Addr) bool {
	if addr == nil {
		return false
	}

	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.IsLoopback()
	case *net.UnixAddr:
		return true
	}

	switch addr.Network() {
	case "unix", "unixpacket", "pipe", "bufconn":
		return true
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
