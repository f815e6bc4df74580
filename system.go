package actd

import (
	"context"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/group"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/dodeca/logging"
)

// Activate returns a handle to an active instance of the object with the
// given ID, activating it if necessary.
func (d *Daemon) Activate(
	ctx context.Context,
	id activation.ObjectID,
	force bool,
) (activation.Handle, error) {
	if err := d.enter(ctx); err != nil {
		return nil, err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return nil, err
	}

	return e.Activate(ctx, id, force)
}

// RegisterGroup registers a new group.
func (d *Daemon) RegisterGroup(
	ctx context.Context,
	desc activation.GroupDescriptor,
) (activation.GroupID, error) {
	if err := d.enter(ctx); err != nil {
		return "", err
	}

	if err := d.checkExec(desc); err != nil {
		return "", err
	}

	id := activation.NewGroupID()

	d.m.Lock()
	defer d.m.Unlock()

	if err := d.log.Append(ctx, record.RegisterGroup{
		GroupID:    id,
		Descriptor: desc.Clone(),
	}); err != nil {
		return "", err
	}

	d.groups[id] = group.New(id, desc, d.env)

	logging.Log(d.opts.Logger, "registered group '%s'", id)

	return id, nil
}

// UnregisterGroup removes a group and all of its objects, killing its
// process if it has one.
func (d *Daemon) UnregisterGroup(ctx context.Context, id activation.GroupID) error {
	if err := d.enter(ctx); err != nil {
		return err
	}

	e, err := d.group(id)
	if err != nil {
		return err
	}

	if err := e.Unregister(ctx); err != nil {
		return err
	}

	d.m.Lock()
	delete(d.groups, id)
	d.m.Unlock()

	return nil
}

// RegisterObject registers a new object within the group named by its
// descriptor.
func (d *Daemon) RegisterObject(
	ctx context.Context,
	desc activation.Descriptor,
) (activation.ObjectID, error) {
	if err := d.enter(ctx); err != nil {
		return "", err
	}

	e, err := d.group(desc.GroupID)
	if err != nil {
		return "", err
	}

	id := activation.NewObjectID()

	if err := e.RegisterObject(ctx, id, desc); err != nil {
		return "", err
	}

	return id, nil
}

// UnregisterObject removes an object.
func (d *Daemon) UnregisterObject(ctx context.Context, id activation.ObjectID) error {
	if err := d.enter(ctx); err != nil {
		return err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return err
	}

	return e.UnregisterObject(ctx, id)
}

// SetActivationDescriptor replaces the descriptor of an object and returns
// the previous descriptor.
func (d *Daemon) SetActivationDescriptor(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Descriptor, error) {
	if err := d.enter(ctx); err != nil {
		return activation.Descriptor{}, err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return activation.Descriptor{}, err
	}

	return e.SetDescriptor(ctx, id, desc)
}

// ActivationDescriptor returns the descriptor of an object.
func (d *Daemon) ActivationDescriptor(
	ctx context.Context,
	id activation.ObjectID,
) (activation.Descriptor, error) {
	if err := d.enter(ctx); err != nil {
		return activation.Descriptor{}, err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return activation.Descriptor{}, err
	}

	return e.Descriptor(id)
}

// SetGroupDescriptor replaces the descriptor of a group and returns the
// previous descriptor.
func (d *Daemon) SetGroupDescriptor(
	ctx context.Context,
	id activation.GroupID,
	desc activation.GroupDescriptor,
) (activation.GroupDescriptor, error) {
	if err := d.enter(ctx); err != nil {
		return activation.GroupDescriptor{}, err
	}

	if err := d.checkExec(desc); err != nil {
		return activation.GroupDescriptor{}, err
	}

	e, err := d.group(id)
	if err != nil {
		return activation.GroupDescriptor{}, err
	}

	return e.SetGroupDescriptor(ctx, desc)
}

// GroupDescriptor returns the descriptor of a group.
func (d *Daemon) GroupDescriptor(
	ctx context.Context,
	id activation.GroupID,
) (activation.GroupDescriptor, error) {
	if err := d.enter(ctx); err != nil {
		return activation.GroupDescriptor{}, err
	}

	e, err := d.group(id)
	if err != nil {
		return activation.GroupDescriptor{}, err
	}

	return e.GroupDescriptor()
}

// ActiveGroup attaches the instantiator of a group process to the daemon.
//
// It returns the monitor that the group process uses to report changes in
// the state of its objects.
func (d *Daemon) ActiveGroup(
	ctx context.Context,
	id activation.GroupID,
	inst activation.Instantiator,
	incarnation uint64,
) (activation.Monitor, error) {
	if err := d.enter(ctx); err != nil {
		return nil, err
	}

	e, err := d.group(id)
	if err != nil {
		return nil, err
	}

	if err := e.ActiveGroup(inst, incarnation); err != nil {
		return nil, err
	}

	return d, nil
}

// Shutdown begins a graceful shutdown of the daemon.
//
// It does not wait for the shutdown to complete. Every group process is
// terminated, then Run() returns.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if err := d.enter(ctx); err != nil {
		return err
	}

	logging.Log(d.opts.Logger, "shutdown requested")
	d.beginShutdown()

	return nil
}

// ActiveObject records h as the handle of an object's current instance.
//
// It has no effect once the daemon has begun to shut down.
func (d *Daemon) ActiveObject(
	ctx context.Context,
	id activation.ObjectID,
	h activation.Handle,
) error {
	if ok, err := d.enterMonitor(ctx); !ok {
		return err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return err
	}

	return e.ActiveObject(id, h)
}

// InactiveObject discards the handle of an object's current instance.
//
// It has no effect once the daemon has begun to shut down.
func (d *Daemon) InactiveObject(ctx context.Context, id activation.ObjectID) error {
	if ok, err := d.enterMonitor(ctx); !ok {
		return err
	}

	e, err := d.groupOf(id)
	if err != nil {
		return err
	}

	return e.InactiveObject(id)
}

// InactiveGroup reports that an incarnation of a group is no longer active.
//
// It has no effect once the daemon has begun to shut down.
func (d *Daemon) InactiveGroup(
	ctx context.Context,
	id activation.GroupID,
	incarnation uint64,
	crashed bool,
) error {
	if ok, err := d.enterMonitor(ctx); !ok {
		return err
	}

	e, err := d.group(id)
	if err != nil {
		return err
	}

	return e.InactiveGroup(incarnation, crashed)
}

// enter blocks until the daemon is ready. It returns an error if the daemon
// has begun to shut down.
func (d *Daemon) enter(ctx context.Context) error {
	select {
	case <-d.ready:
	case <-d.shutdown.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if d.shutdown.Err() != nil {
		return activation.ErrShuttingDown
	}

	return nil
}

// enterMonitor blocks until the daemon is ready. It returns false if the
// call is to be ignored.
func (d *Daemon) enterMonitor(ctx context.Context) (bool, error) {
	if err := d.enter(ctx); err != nil {
		if err == activation.ErrShuttingDown {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// group returns the entry for the group with the given ID.
func (d *Daemon) group(id activation.GroupID) (*group.Entry, error) {
	d.m.RLock()
	defer d.m.RUnlock()

	if e, ok := d.groups[id]; ok {
		return e, nil
	}

	return nil, activation.UnknownGroupError{GroupID: id}
}

// groupOf returns the entry for the group that hosts the given object.
func (d *Daemon) groupOf(id activation.ObjectID) (*group.Entry, error) {
	gid, ok := d.index.Get(id)
	if !ok {
		return nil, activation.UnknownObjectError{ObjectID: id}
	}

	d.m.RLock()
	defer d.m.RUnlock()

	if e, ok := d.groups[gid]; ok {
		return e, nil
	}

	return nil, activation.UnknownObjectError{ObjectID: id}
}

// checkExec returns an error if the exec policy does not allow the command
// used to start processes for a group described by desc.
func (d *Daemon) checkExec(desc activation.GroupDescriptor) error {
	argv := group.CommandLine(d.opts.GroupCommand, desc)
	return d.opts.ExecPolicy.CheckExecCommand(desc.Clone(), argv)
}
