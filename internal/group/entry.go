package group

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/actd/internal/x/loggingx"
	"github.com/dogmatiq/dodeca/logging"
)

// Entry is the runtime state of a registered group.
type Entry struct {
	ID activation.GroupID

	env    *Env
	logger logging.Logger

	m           sync.Mutex
	changed     chan struct{}
	desc        activation.GroupDescriptor
	incarnation uint64
	objects     map[activation.ObjectID]*object
	inst        activation.Instantiator
	status      Status
	waitUntil   time.Time
	child       process.Process
	watchdog    *watchdog
	removed     bool
}

// object is the runtime state of a registered object.
type object struct {
	id activation.ObjectID

	// desc is guarded by the entry's mutex.
	desc activation.Descriptor

	handle  atomic.Pointer[activation.Handle]
	removed atomic.Bool

	// m serializes activation of the object. It may be held while acquiring
	// the entry's mutex, but not the other way around.
	m sync.Mutex
}

// New returns an entry for a newly registered group.
//
// The group's registration must already be in the log.
func New(id activation.GroupID, desc activation.GroupDescriptor, env *Env) *Entry {
	return &Entry{
		ID:      id,
		env:     env,
		logger:  loggingx.WithPrefix(env.Logger, "@%s | ", id),
		changed: make(chan struct{}),
		desc:    desc.Clone(),
		objects: map[activation.ObjectID]*object{},
	}
}

// Restore returns an entry for a group recovered from the log.
//
// Each of the group's objects is added to the index.
func Restore(id activation.GroupID, g *record.Group, env *Env) *Entry {
	e := New(id, g.Descriptor, env)
	e.incarnation = g.Incarnation

	for oid, desc := range g.Objects {
		e.objects[oid] = &object{
			id:   oid,
			desc: desc.Clone(),
		}
		env.Index.Put(oid, id)
	}

	return e
}

// Info is a summary of an entry's runtime state.
type Info struct {
	Status      Status
	Incarnation uint64
	Objects     int
	Active      bool
	PID         int
}

// Info returns a summary of the entry's current state.
func (e *Entry) Info() Info {
	e.m.Lock()
	defer e.m.Unlock()

	i := Info{
		Status:      e.status,
		Incarnation: e.incarnation,
		Objects:     len(e.objects),
		Active:      e.inst != nil,
	}

	if e.child != nil {
		i.PID = e.child.PID()
	}

	return i
}

// RegisterObject adds an object with the given ID to the group.
func (e *Entry) RegisterObject(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) error {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return err
	}

	if desc.GroupID != e.ID {
		return activation.InvalidDescriptorError{
			ObjectID: id,
			Reason:   "descriptor contains wrong group",
		}
	}

	if err := e.env.Log.Append(ctx, record.RegisterObject{
		ObjectID:   id,
		Descriptor: desc.Clone(),
	}); err != nil {
		return err
	}

	e.objects[id] = &object{
		id:   id,
		desc: desc.Clone(),
	}
	e.env.Index.Put(id, e.ID)

	logging.Debug(e.logger, "registered object '%s' (%s)", id, desc.ClassName)

	return nil
}

// UnregisterObject removes an object from the group.
func (e *Entry) UnregisterObject(ctx context.Context, id activation.ObjectID) error {
	e.m.Lock()
	defer e.m.Unlock()

	o, err := e.object(id)
	if err != nil {
		return err
	}

	if err := e.env.Log.Append(ctx, record.UnregisterObject{ObjectID: id}); err != nil {
		return err
	}

	delete(e.objects, id)
	o.removed.Store(true)
	o.handle.Store(nil)
	e.env.Index.Delete(id)

	logging.Debug(e.logger, "unregistered object '%s'", id)

	return nil
}

// SetDescriptor replaces the descriptor of an object. It returns the previous
// descriptor.
//
// The object's current instance, if any, is not affected.
func (e *Entry) SetDescriptor(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Descriptor, error) {
	e.m.Lock()
	defer e.m.Unlock()

	o, err := e.object(id)
	if err != nil {
		return activation.Descriptor{}, err
	}

	if desc.GroupID != e.ID {
		return activation.Descriptor{}, activation.InvalidDescriptorError{
			ObjectID: id,
			Reason:   "descriptor contains wrong group",
		}
	}

	if err := e.env.Log.Append(ctx, record.UpdateDescriptor{
		ObjectID:   id,
		Descriptor: desc.Clone(),
	}); err != nil {
		return activation.Descriptor{}, err
	}

	old := o.desc
	o.desc = desc.Clone()

	return old, nil
}

// Descriptor returns the descriptor of an object.
func (e *Entry) Descriptor(id activation.ObjectID) (activation.Descriptor, error) {
	e.m.Lock()
	defer e.m.Unlock()

	o, err := e.object(id)
	if err != nil {
		return activation.Descriptor{}, err
	}

	return o.desc.Clone(), nil
}

// SetGroupDescriptor replaces the group's descriptor. It returns the previous
// descriptor.
//
// The new descriptor is used the next time a process is started for the
// group.
func (e *Entry) SetGroupDescriptor(
	ctx context.Context,
	desc activation.GroupDescriptor,
) (activation.GroupDescriptor, error) {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return activation.GroupDescriptor{}, err
	}

	if err := e.env.Log.Append(ctx, record.UpdateGroupDescriptor{
		GroupID:    e.ID,
		Descriptor: desc.Clone(),
	}); err != nil {
		return activation.GroupDescriptor{}, err
	}

	old := e.desc
	e.desc = desc.Clone()

	return old, nil
}

// GroupDescriptor returns the group's descriptor.
func (e *Entry) GroupDescriptor() (activation.GroupDescriptor, error) {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return activation.GroupDescriptor{}, err
	}

	return e.desc.Clone(), nil
}

// ActiveObject records h as the current instance of an object.
func (e *Entry) ActiveObject(id activation.ObjectID, h activation.Handle) error {
	e.m.Lock()
	defer e.m.Unlock()

	o, err := e.object(id)
	if err != nil {
		return err
	}

	h = append(activation.Handle(nil), h...)
	o.handle.Store(&h)

	return nil
}

// InactiveObject discards the current instance of an object, if any. The
// object is activated again on its next use.
func (e *Entry) InactiveObject(id activation.ObjectID) error {
	e.m.Lock()
	defer e.m.Unlock()

	o, err := e.object(id)
	if err != nil {
		return err
	}

	o.handle.Store(nil)

	return nil
}

// object returns the object with the given ID. e.m must be held.
func (e *Entry) object(id activation.ObjectID) (*object, error) {
	if e.removed {
		return nil, activation.UnknownObjectError{ObjectID: id}
	}

	if o, ok := e.objects[id]; ok {
		return o, nil
	}

	return nil, activation.UnknownObjectError{ObjectID: id}
}

// checkRemoved returns an error if the group has been unregistered. e.m must
// be held.
func (e *Entry) checkRemoved() error {
	if e.removed {
		return activation.UnknownGroupError{GroupID: e.ID}
	}
	return nil
}

// goroutine runs fn in the background.
func (e *Entry) goroutine(fn func(ctx context.Context)) {
	if e.env.Go != nil {
		e.env.Go(fn)
	} else {
		go fn(context.Background())
	}
}
