package groupkit

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/dodeca/logging"
)

// instantiator is the activation.Instantiator served by a group process.
type instantiator struct {
	address     string
	groupID     activation.GroupID
	incarnation uint64
	properties  map[string]string
	factories   map[string]Factory
	logger      logging.Logger

	m        sync.Mutex
	monitor  activation.Monitor
	inactive bool
	objects  map[activation.ObjectID]activation.Handle
}

// Address returns the address at which the instantiator is served.
func (i *instantiator) Address() string {
	return i.address
}

// NewInstance constructs a new instance of the object with the given ID.
func (i *instantiator) NewInstance(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Handle, error) {
	i.m.Lock()
	inactive := i.inactive
	i.m.Unlock()

	if inactive {
		return nil, activation.ErrInactiveGroup
	}

	f, ok := i.factories[desc.ClassName]
	if !ok {
		return nil, fmt.Errorf("no factory is registered for the '%s' class", desc.ClassName)
	}

	h, err := f(ctx, Request{
		ObjectID:    id,
		Descriptor:  desc,
		GroupID:     i.groupID,
		Incarnation: i.incarnation,
		Properties:  maps.Clone(i.properties),
		Inactive: func(ctx context.Context) error {
			return i.inactiveObject(ctx, id)
		},
	})
	if err != nil {
		return nil, err
	}

	i.m.Lock()
	if i.objects == nil {
		i.objects = map[activation.ObjectID]activation.Handle{}
	}
	i.objects[id] = h
	mon := i.monitor
	i.m.Unlock()

	logging.Debug(i.logger, "activated object '%s' of class '%s'", id, desc.ClassName)

	if mon != nil {
		i.report(ctx, mon, id, h)
	}

	return h, nil
}

// attached records the monitor returned by the daemon, then reports the
// objects that were activated before it was known.
func (i *instantiator) attached(ctx context.Context, mon activation.Monitor) {
	i.m.Lock()
	i.monitor = mon
	objects := maps.Clone(i.objects)
	i.m.Unlock()

	for id, h := range objects {
		i.report(ctx, mon, id, h)
	}
}

// report notifies the daemon that an object has a new instance.
func (i *instantiator) report(
	ctx context.Context,
	mon activation.Monitor,
	id activation.ObjectID,
	h activation.Handle,
) {
	if err := mon.ActiveObject(ctx, id, h); err != nil {
		logging.Log(i.logger, "unable to report active object '%s': %s", id, err)
	}
}

// inactiveObject discards the instance of an object.
func (i *instantiator) inactiveObject(ctx context.Context, id activation.ObjectID) error {
	i.m.Lock()
	_, ok := i.objects[id]
	delete(i.objects, id)
	mon := i.monitor
	i.m.Unlock()

	if !ok || mon == nil {
		return nil
	}

	return mon.InactiveObject(ctx, id)
}

// deactivate causes subsequent requests for new instances to fail. It returns
// the monitor, if the group attached.
func (i *instantiator) deactivate() activation.Monitor {
	i.m.Lock()
	defer i.m.Unlock()

	i.inactive = true
	i.objects = nil

	return i.monitor
}
