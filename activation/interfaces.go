package activation

import "context"

// Activator obtains handles to activatable objects, activating them on demand.
type Activator interface {
	// Activate returns a handle to the object with the given ID.
	//
	// If force is false and the object is already active its existing handle
	// is returned, otherwise the object is activated.
	Activate(ctx context.Context, id ObjectID, force bool) (Handle, error)
}

// System manages the registration of groups and objects.
type System interface {
	RegisterGroup(ctx context.Context, desc GroupDescriptor) (GroupID, error)
	UnregisterGroup(ctx context.Context, id GroupID) error
	RegisterObject(ctx context.Context, desc Descriptor) (ObjectID, error)
	UnregisterObject(ctx context.Context, id ObjectID) error

	// SetActivationDescriptor replaces an object's descriptor and returns
	// the previous one.
	SetActivationDescriptor(ctx context.Context, id ObjectID, desc Descriptor) (Descriptor, error)
	ActivationDescriptor(ctx context.Context, id ObjectID) (Descriptor, error)

	// SetGroupDescriptor replaces a group's descriptor and returns the
	// previous one.
	SetGroupDescriptor(ctx context.Context, id GroupID, desc GroupDescriptor) (GroupDescriptor, error)
	GroupDescriptor(ctx context.Context, id GroupID) (GroupDescriptor, error)

	// ActiveGroup is called by a group process to attach its instantiator to
	// the daemon. incarnation must match the incarnation the process was
	// started with.
	ActiveGroup(ctx context.Context, id GroupID, inst Instantiator, incarnation uint64) (Monitor, error)

	// Shutdown begins an orderly shutdown of the daemon. It does not wait for
	// the shutdown to complete.
	Shutdown(ctx context.Context) error
}

// Monitor receives notifications from group processes about the objects they
// host.
type Monitor interface {
	ActiveObject(ctx context.Context, id ObjectID, h Handle) error
	InactiveObject(ctx context.Context, id ObjectID) error
	InactiveGroup(ctx context.Context, id GroupID, incarnation uint64, crashed bool) error
}

// Instantiator constructs objects within a group process.
//
// The daemon compares instantiators with ==, so implementations must be
// comparable, typically by being pointer types.
type Instantiator interface {
	NewInstance(ctx context.Context, id ObjectID, desc Descriptor) (Handle, error)
}
