package api

import (
	"context"
	"errors"

	"github.com/dogmatiq/actd/activation"
	"google.golang.org/grpc"
)

// ActivatorClient is an activation.Activator that calls a remote activator.
type ActivatorClient struct {
	conn grpc.ClientConnInterface
}

var _ activation.Activator = (*ActivatorClient)(nil)

// NewActivatorClient returns a client for the activator served on conn.
func NewActivatorClient(conn grpc.ClientConnInterface) *ActivatorClient {
	return &ActivatorClient{conn}
}

// Activate returns a handle to an active instance of an object.
func (c *ActivatorClient) Activate(
	ctx context.Context,
	id activation.ObjectID,
	force bool,
) (activation.Handle, error) {
	res, err := invoke[handleResponse](
		ctx, c.conn, activatorService, "Activate",
		&activateRequest{ObjectID: id, Force: force},
	)
	if err != nil {
		return nil, err
	}

	return res.Handle, nil
}

// SystemClient is an activation.System that calls a remote activation
// system.
type SystemClient struct {
	conn grpc.ClientConnInterface
}

var _ activation.System = (*SystemClient)(nil)

// NewSystemClient returns a client for the activation system served on conn.
func NewSystemClient(conn grpc.ClientConnInterface) *SystemClient {
	return &SystemClient{conn}
}

// RegisterGroup registers a new group.
func (c *SystemClient) RegisterGroup(
	ctx context.Context,
	desc activation.GroupDescriptor,
) (activation.GroupID, error) {
	res, err := invoke[groupIDResponse](
		ctx, c.conn, systemService, "RegisterGroup",
		&registerGroupRequest{Descriptor: desc},
	)
	if err != nil {
		return "", err
	}

	return res.GroupID, nil
}

// UnregisterGroup removes a group and its objects.
func (c *SystemClient) UnregisterGroup(ctx context.Context, id activation.GroupID) error {
	_, err := invoke[empty](
		ctx, c.conn, systemService, "UnregisterGroup",
		&groupRequest{GroupID: id},
	)
	return err
}

// RegisterObject registers a new object.
func (c *SystemClient) RegisterObject(
	ctx context.Context,
	desc activation.Descriptor,
) (activation.ObjectID, error) {
	res, err := invoke[objectIDResponse](
		ctx, c.conn, systemService, "RegisterObject",
		&registerObjectRequest{Descriptor: desc},
	)
	if err != nil {
		return "", err
	}

	return res.ObjectID, nil
}

// UnregisterObject removes an object.
func (c *SystemClient) UnregisterObject(ctx context.Context, id activation.ObjectID) error {
	_, err := invoke[empty](
		ctx, c.conn, systemService, "UnregisterObject",
		&objectRequest{ObjectID: id},
	)
	return err
}

// SetActivationDescriptor replaces the descriptor of an object.
func (c *SystemClient) SetActivationDescriptor(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Descriptor, error) {
	res, err := invoke[descriptorResponse](
		ctx, c.conn, systemService, "SetActivationDescriptor",
		&setDescriptorRequest{ObjectID: id, Descriptor: desc},
	)
	if err != nil {
		return activation.Descriptor{}, err
	}

	return res.Descriptor, nil
}

// ActivationDescriptor returns the descriptor of an object.
func (c *SystemClient) ActivationDescriptor(
	ctx context.Context,
	id activation.ObjectID,
) (activation.Descriptor, error) {
	res, err := invoke[descriptorResponse](
		ctx, c.conn, systemService, "ActivationDescriptor",
		&objectRequest{ObjectID: id},
	)
	if err != nil {
		return activation.Descriptor{}, err
	}

	return res.Descriptor, nil
}

// SetGroupDescriptor replaces the descriptor of a group.
func (c *SystemClient) SetGroupDescriptor(
	ctx context.Context,
	id activation.GroupID,
	desc activation.GroupDescriptor,
) (activation.GroupDescriptor, error) {
	res, err := invoke[groupDescriptorResponse](
		ctx, c.conn, systemService, "SetGroupDescriptor",
		&setGroupDescriptorRequest{GroupID: id, Descriptor: desc},
	)
	if err != nil {
		return activation.GroupDescriptor{}, err
	}

	return res.Descriptor, nil
}

// GroupDescriptor returns the descriptor of a group.
func (c *SystemClient) GroupDescriptor(
	ctx context.Context,
	id activation.GroupID,
) (activation.GroupDescriptor, error) {
	res, err := invoke[groupDescriptorResponse](
		ctx, c.conn, systemService, "GroupDescriptor",
		&groupRequest{GroupID: id},
	)
	if err != nil {
		return activation.GroupDescriptor{}, err
	}

	return res.Descriptor, nil
}

// Addressable is an instantiator that is served at a network address.
type Addressable interface {
	activation.Instantiator

	// Address returns the address at which the instantiator is served.
	Address() string
}

// ActiveGroup attaches a group process's instantiator to the system.
//
// inst must implement Addressable. The returned monitor calls the system
// over the same connection.
func (c *SystemClient) ActiveGroup(
	ctx context.Context,
	id activation.GroupID,
	inst activation.Instantiator,
	incarnation uint64,
) (activation.Monitor, error) {
	a, ok := inst.(Addressable)
	if !ok {
		return nil, errors.New("instantiator is not served at a network address")
	}

	if _, err := invoke[empty](
		ctx, c.conn, systemService, "ActiveGroup",
		&activeGroupRequest{
			GroupID:      id,
			Instantiator: a.Address(),
			Incarnation:  incarnation,
		},
	); err != nil {
		return nil, err
	}

	return NewMonitorClient(c.conn), nil
}

// Shutdown asks the daemon to shut down.
func (c *SystemClient) Shutdown(ctx context.Context) error {
	_, err := invoke[empty](
		ctx, c.conn, systemService, "Shutdown",
		&empty{},
	)
	return err
}

// MonitorClient is an activation.Monitor that calls a remote monitor.
type MonitorClient struct {
	conn grpc.ClientConnInterface
}

var _ activation.Monitor = (*MonitorClient)(nil)

// NewMonitorClient returns a client for the activation monitor served on conn.
func NewMonitorClient(conn grpc.ClientConnInterface) *MonitorClient {
	return &MonitorClient{conn}
}

// ActiveObject reports that an object has a new instance.
func (c *MonitorClient) ActiveObject(
	ctx context.Context,
	id activation.ObjectID,
	h activation.Handle,
) error {
	_, err := invoke[empty](
		ctx, c.conn, monitorService, "ActiveObject",
		&activeObjectRequest{ObjectID: id, Handle: h},
	)
	return err
}

// InactiveObject reports that an object's instance has gone away.
func (c *MonitorClient) InactiveObject(ctx context.Context, id activation.ObjectID) error {
	_, err := invoke[empty](
		ctx, c.conn, monitorService, "InactiveObject",
		&objectRequest{ObjectID: id},
	)
	return err
}

// InactiveGroup reports that a group process is no longer active.
func (c *MonitorClient) InactiveGroup(
	ctx context.Context,
	id activation.GroupID,
	incarnation uint64,
	crashed bool,
) error {
	_, err := invoke[empty](
		ctx, c.conn, monitorService, "InactiveGroup",
		&inactiveGroupRequest{
			GroupID:     id,
			Incarnation: incarnation,
			Crashed:     crashed,
		},
	)
	return err
}
