// Package record defines the records written to the daemon's log, and the
// state that they are applied to.
package record

import "github.com/dogmatiq/actd/activation"

// Record is a state mutation that is written to the log before it is applied.
type Record interface {
	// AcceptVisitor calls the appropriate visit method on the given visitor.
	AcceptVisitor(Visitor) error
}

// RegisterObject is a record of an object being registered.
type RegisterObject struct {
	ObjectID   activation.ObjectID
	Descriptor activation.Descriptor
}

// UnregisterObject is a record of an object being unregistered.
type UnregisterObject struct {
	ObjectID activation.ObjectID
}

// UpdateDescriptor is a record of an object's descriptor being replaced.
type UpdateDescriptor struct {
	ObjectID   activation.ObjectID
	Descriptor activation.Descriptor
}

// RegisterGroup is a record of a group being registered.
type RegisterGroup struct {
	GroupID    activation.GroupID
	Descriptor activation.GroupDescriptor
}

// UnregisterGroup is a record of a group, and all of its objects, being
// unregistered.
type UnregisterGroup struct {
	GroupID activation.GroupID
}

// UpdateGroupDescriptor is a record of a group's descriptor being replaced.
type UpdateGroupDescriptor struct {
	GroupID    activation.GroupID
	Descriptor activation.GroupDescriptor
}

// GroupIncarnation is a record of a new process being started for a group.
type GroupIncarnation struct {
	GroupID     activation.GroupID
	Incarnation uint64
}

// Visitor visits records.
type Visitor interface {
	VisitRegisterObject(RegisterObject) error
	VisitUnregisterObject(UnregisterObject) error
	VisitUpdateDescriptor(UpdateDescriptor) error
	VisitRegisterGroup(RegisterGroup) error
	VisitUnregisterGroup(UnregisterGroup) error
	VisitUpdateGroupDescriptor(UpdateGroupDescriptor) error
	VisitGroupIncarnation(GroupIncarnation) error
}

// AcceptVisitor calls v.VisitRegisterObject().
func (r RegisterObject) AcceptVisitor(v Visitor) error {
	return v.VisitRegisterObject(r)
}

// AcceptVisitor calls v.VisitUnregisterObject().
func (r UnregisterObject) AcceptVisitor(v Visitor) error {
	return v.VisitUnregisterObject(r)
}

// AcceptVisitor calls v.VisitUpdateDescriptor().
func (r UpdateDescriptor) AcceptVisitor(v Visitor) error {
	return v.VisitUpdateDescriptor(r)
}

// AcceptVisitor calls v.VisitRegisterGroup().
func (r RegisterGroup) AcceptVisitor(v Visitor) error {
	return v.VisitRegisterGroup(r)
}

// AcceptVisitor calls v.VisitUnregisterGroup().
func (r UnregisterGroup) AcceptVisitor(v Visitor) error {
	return v.VisitUnregisterGroup(r)
}

// AcceptVisitor calls v.VisitUpdateGroupDescriptor().
func (r UpdateGroupDescriptor) AcceptVisitor(v Visitor) error {
	return v.VisitUpdateGroupDescriptor(r)
}

// AcceptVisitor calls v.VisitGroupIncarnation().
func (r GroupIncarnation) AcceptVisitor(v Visitor) error {
	return v.VisitGroupIncarnation(r)
}
