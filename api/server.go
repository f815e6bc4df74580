package api

import (
	"context"

	"github.com/dogmatiq/actd/activation"
	"google.golang.org/grpc"
)

// RegisterActivatorServer registers an activator with a gRPC server.
func RegisterActivatorServer(s grpc.ServiceRegistrar, a activation.Activator) {
	register(
		s,
		activatorService,
		a,
		method(
			activatorService, "Activate", false,
			func(ctx context.Context, req *activateRequest) (*handleResponse, error) {
				h, err := a.Activate(ctx, req.ObjectID, req.Force)
				if err != nil {
					return nil, err
				}
				return &handleResponse{Handle: h}, nil
			},
		),
	)
}

// RegisterSystemServer registers an activation system with a gRPC server.
//
// Each method may only be called from the local host. The instantiators of
// group processes that attach to the system are obtained from pool.
func RegisterSystemServer(
	s grpc.ServiceRegistrar,
	sys activation.System,
	pool *InstantiatorPool,
) {
	register(
		s,
		systemService,
		sys,
		method(
			systemService, "RegisterGroup", true,
			func(ctx context.Context, req *registerGroupRequest) (*groupIDResponse, error) {
				id, err := sys.RegisterGroup(ctx, req.Descriptor)
				if err != nil {
					return nil, err
				}
				return &groupIDResponse{GroupID: id}, nil
			},
		),
		method(
			systemService, "UnregisterGroup", true,
			func(ctx context.Context, req *groupRequest) (*empty, error) {
				return &empty{}, sys.UnregisterGroup(ctx, req.GroupID)
			},
		),
		method(
			systemService, "RegisterObject", true,
			func(ctx context.Context, req *registerObjectRequest) (*objectIDResponse, error) {
				id, err := sys.RegisterObject(ctx, req.Descriptor)
				if err != nil {
					return nil, err
				}
				return &objectIDResponse{ObjectID: id}, nil
			},
		),
		method(
			systemService, "UnregisterObject", true,
			func(ctx context.Context, req *objectRequest) (*empty, error) {
				return &empty{}, sys.UnregisterObject(ctx, req.ObjectID)
			},
		),
		method(
			systemService, "SetActivationDescriptor", true,
			func(ctx context.Context, req *setDescriptorRequest) (*descriptorResponse, error) {
				old, err := sys.SetActivationDescriptor(ctx, req.ObjectID, req.Descriptor)
				if err != nil {
					return nil, err
				}
				return &descriptorResponse{Descriptor: old}, nil
			},
		),
		method(
			systemService, "ActivationDescriptor", true,
			func(ctx context.Context, req *objectRequest) (*descriptorResponse, error) {
				desc, err := sys.ActivationDescriptor(ctx, req.ObjectID)
				if err != nil {
					return nil, err
				}
				return &descriptorResponse{Descriptor: desc}, nil
			},
		),
		method(
			systemService, "SetGroupDescriptor", true,
			func(ctx context.Context, req *setGroupDescriptorRequest) (*groupDescriptorResponse, error) {
				old, err := sys.SetGroupDescriptor(ctx, req.GroupID, req.Descriptor)
				if err != nil {
					return nil, err
				}
				return &groupDescriptorResponse{Descriptor: old}, nil
			},
		),
		method(
			systemService, "GroupDescriptor", true,
			func(ctx context.Context, req *groupRequest) (*groupDescriptorResponse, error) {
				desc, err := sys.GroupDescriptor(ctx, req.GroupID)
				if err != nil {
					return nil, err
				}
				return &groupDescriptorResponse{Descriptor: desc}, nil
			},
		),
		method(
			systemService, "ActiveGroup", true,
			func(ctx context.Context, req *activeGroupRequest) (*empty, error) {
				inst, err := pool.Get(req.Instantiator)
				if err != nil {
					return nil, err
				}

				if _, err := sys.ActiveGroup(ctx, req.GroupID, inst, req.Incarnation); err != nil {
					return nil, err
				}

				return &empty{}, nil
			},
		),
		method(
			systemService, "Shutdown", true,
			func(ctx context.Context, _ *empty) (*empty, error) {
				return &empty{}, sys.Shutdown(ctx)
			},
		),
	)
}

// RegisterMonitorServer registers an activation monitor with a gRPC server.
//
// Each method may only be called from the local host.
func RegisterMonitorServer(s grpc.ServiceRegistrar, m activation.Monitor) {
	register(
		s,
		monitorService,
		m,
		method(
			monitorService, "ActiveObject", true,
			func(ctx context.Context, req *activeObjectRequest) (*empty, error) {
				return &empty{}, m.ActiveObject(ctx, req.ObjectID, req.Handle)
			},
		),
		method(
			monitorService, "InactiveObject", true,
			func(ctx context.Context, req *objectRequest) (*empty, error) {
				return &empty{}, m.InactiveObject(ctx, req.ObjectID)
			},
		),
		method(
			monitorService, "InactiveGroup", true,
			func(ctx context.Context, req *inactiveGroupRequest) (*empty, error) {
				return &empty{}, m.InactiveGroup(ctx, req.GroupID, req.Incarnation, req.Crashed)
			},
		),
	)
}

// RegisterInstantiatorServer registers the instantiator of a group process
// with a gRPC server.
func RegisterInstantiatorServer(s grpc.ServiceRegistrar, inst activation.Instantiator) {
	register(
		s,
		instantiatorService,
		inst,
		method(
			instantiatorService, "NewInstance", false,
			func(ctx context.Context, req *newInstanceRequest) (*handleResponse, error) {
				h, err := inst.NewInstance(ctx, req.ObjectID, req.Descriptor)
				if err != nil {
					return nil, err
				}
				return &handleResponse{Handle: h}, nil
			},
		),
	)
}
