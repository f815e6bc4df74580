package record

import (
	"fmt"

	"github.com/dogmatiq/actd/activation"
)

const (
	// MajorVersion is the major version of the state format. State with a
	// different major version can not be recovered.
	MajorVersion = 1

	// MinorVersion is the minor version of the state format.
	MinorVersion = 0
)

// State is the durable state of the daemon.
//
// It is exactly what is written to a snapshot.
type State struct {
	MajorVersion int
	MinorVersion int

	// Objects maps each registered object to the group that hosts it.
	Objects map[activation.ObjectID]activation.GroupID

	// Groups contains the registered groups.
	Groups map[activation.GroupID]*Group
}

// Group is the durable state of a single group.
type Group struct {
	Descriptor  activation.GroupDescriptor
	Incarnation uint64
	Objects     map[activation.ObjectID]activation.Descriptor
}

// NewState returns an empty state at the current version.
func NewState() *State {
	return &State{
		MajorVersion: MajorVersion,
		MinorVersion: MinorVersion,
		Objects:      map[activation.ObjectID]activation.GroupID{},
		Groups:       map[activation.GroupID]*Group{},
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		MajorVersion: s.MajorVersion,
		MinorVersion: s.MinorVersion,
		Objects:      make(map[activation.ObjectID]activation.GroupID, len(s.Objects)),
		Groups:       make(map[activation.GroupID]*Group, len(s.Groups)),
	}

	for id, gid := range s.Objects {
		c.Objects[id] = gid
	}

	for gid, g := range s.Groups {
		objects := make(map[activation.ObjectID]activation.Descriptor, len(g.Objects))
		for id, desc := range g.Objects {
			objects[id] = desc.Clone()
		}

		c.Groups[gid] = &Group{
			Descriptor:  g.Descriptor.Clone(),
			Incarnation: g.Incarnation,
			Objects:     objects,
		}
	}

	return c
}

// Validate returns an error if s can not be used by this version of the
// daemon.
func (s *State) Validate() error {
	if s.MajorVersion != MajorVersion {
		return fmt.Errorf(
			"unsupported state version %d.%d, expected %d.x",
			s.MajorVersion,
			s.MinorVersion,
			MajorVersion,
		)
	}

	return nil
}

// Apply applies r to s.
//
// It returns an error, leaving s unchanged, if r is not consistent with s.
func Apply(s *State, r Record) error {
	return r.AcceptVisitor(applier{state: s})
}

// Check returns the error that Apply() would return, without modifying s.
func Check(s *State, r Record) error {
	return r.AcceptVisitor(applier{state: s, check: true})
}

// applier is a Visitor that applies records to a State.
type applier struct {
	state *State
	check bool
}

func (a applier) VisitRegisterObject(r RegisterObject) error {
	g, err := a.group(r.Descriptor.GroupID)
	if err != nil {
		return err
	}

	if _, ok := a.state.Objects[r.ObjectID]; ok {
		return fmt.Errorf("object with ID '%s' is already registered", r.ObjectID)
	}

	if a.check {
		return nil
	}

	g.Objects[r.ObjectID] = r.Descriptor.Clone()
	a.state.Objects[r.ObjectID] = r.Descriptor.GroupID

	return nil
}

func (a applier) VisitUnregisterObject(r UnregisterObject) error {
	g, err := a.groupOf(r.ObjectID)
	if err != nil || a.check {
		return err
	}

	delete(g.Objects, r.ObjectID)
	delete(a.state.Objects, r.ObjectID)

	return nil
}

func (a applier) VisitUpdateDescriptor(r UpdateDescriptor) error {
	g, err := a.groupOf(r.ObjectID)
	if err != nil {
		return err
	}

	if a.state.Objects[r.ObjectID] != r.Descriptor.GroupID {
		return activation.InvalidDescriptorError{
			ObjectID: r.ObjectID,
			Reason:   "descriptor contains wrong group",
		}
	}

	if a.check {
		return nil
	}

	g.Objects[r.ObjectID] = r.Descriptor.Clone()

	return nil
}

func (a applier) VisitRegisterGroup(r RegisterGroup) error {
	if _, ok := a.state.Groups[r.GroupID]; ok {
		return fmt.Errorf("group with ID '%s' is already registered", r.GroupID)
	}

	if a.check {
		return nil
	}

	a.state.Groups[r.GroupID] = &Group{
		Descriptor: r.Descriptor.Clone(),
		Objects:    map[activation.ObjectID]activation.Descriptor{},
	}

	return nil
}

func (a applier) VisitUnregisterGroup(r UnregisterGroup) error {
	g, err := a.group(r.GroupID)
	if err != nil || a.check {
		return err
	}

	for id := range g.Objects {
		delete(a.state.Objects, id)
	}

	delete(a.state.Groups, r.GroupID)

	return nil
}

func (a applier) VisitUpdateGroupDescriptor(r UpdateGroupDescriptor) error {
	g, err := a.group(r.GroupID)
	if err != nil || a.check {
		return err
	}

	g.Descriptor = r.Descriptor.Clone()

	return nil
}

func (a applier) VisitGroupIncarnation(r GroupIncarnation) error {
	g, err := a.group(r.GroupID)
	if err != nil {
		return err
	}

	if r.Incarnation <= g.Incarnation {
		return fmt.Errorf(
			"incarnation %d of group '%s' does not follow incarnation %d",
			r.Incarnation,
			r.GroupID,
			g.Incarnation,
		)
	}

	if a.check {
		return nil
	}

	g.Incarnation = r.Incarnation

	return nil
}

func (a applier) group(id activation.GroupID) (*Group, error) {
	if g, ok := a.state.Groups[id]; ok {
		return g, nil
	}

	return nil, activation.UnknownGroupError{GroupID: id}
}

func (a applier) groupOf(id activation.ObjectID) (*Group, error) {
	gid, ok := a.state.Objects[id]
	if !ok {
		return nil, activation.UnknownObjectError{ObjectID: id}
	}

	return a.group(gid)
}
