package activation

import (
	"bytes"
	"maps"
	"slices"
)

// Descriptor describes how to activate an object.
type Descriptor struct {
	// GroupID is the ID of the group that hosts the object. It never changes
	// after the object is registered.
	GroupID GroupID

	// ClassName identifies the implementation used to construct the object
	// within the group process.
	ClassName string

	// Location is an optional hint as to where the implementation is found.
	Location string

	// Data is opaque initialization data passed to the implementation.
	Data []byte

	// Restart indicates that the object is reactivated automatically when its
	// group process exits unexpectedly.
	Restart bool
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	d.Data = bytes.Clone(d.Data)
	return d
}

// CommandEnvironment overrides the command used to start a group process.
type CommandEnvironment struct {
	// Path is the executable to run. If it is empty the daemon's default
	// group command is used.
	Path string

	// Options are additional arguments placed before the daemon's own
	// arguments.
	Options []string

	// Env contains environment variables set for the process, in addition to
	// those inherited from the daemon.
	Env map[string]string
}

// GroupDescriptor describes how to start the process for an activation group.
type GroupDescriptor struct {
	// ClassName, Location and Data select a custom group implementation. They
	// are empty for the default implementation.
	ClassName string
	Location  string
	Data      []byte

	// Properties are passed to the group process as -D<key>=<value>
	// arguments.
	Properties map[string]string

	// Command overrides the command used to start the process, if non-nil.
	Command *CommandEnvironment
}

// Clone returns a deep copy of d.
func (d GroupDescriptor) Clone() GroupDescriptor {
	d.Data = bytes.Clone(d.Data)
	d.Properties = maps.Clone(d.Properties)

	if d.Command != nil {
		c := *d.Command
		c.Options = slices.Clone(c.Options)
		c.Env = maps.Clone(c.Env)
		d.Command = &c
	}

	return d
}

// IsCustom returns true if d selects a group implementation other than the
// default.
func (d GroupDescriptor) IsCustom() bool {
	return d.ClassName != "" || d.Location != "" || len(d.Data) != 0
}
