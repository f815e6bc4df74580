package groupkit

import (
	"context"

	"github.com/dogmatiq/actd/activation"
)

// Factory constructs an object within a group process.
//
// It returns the handle by which clients of the daemon reach the new
// instance.
type Factory func(ctx context.Context, r Request) (activation.Handle, error)

// Request describes an object to be constructed by a factory.
type Request struct {
	// ObjectID is the ID of the object.
	ObjectID activation.ObjectID

	// Descriptor is the object's activation descriptor.
	Descriptor activation.Descriptor

	// GroupID is the ID of the group that hosts the object.
	GroupID activation.GroupID

	// Incarnation is the incarnation of the group process.
	Incarnation uint64

	// Properties are the properties defined on the group process's command
	// line.
	Properties map[string]string

	// Inactive discards the instance and reports to the daemon that the
	// object is no longer active. The object is activated again the next
	// time it is used.
	Inactive func(ctx context.Context) error
}
