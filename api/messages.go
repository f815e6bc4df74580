package api

import "github.com/dogmatiq/actd/activation"

type empty struct{}

type activateRequest struct {
	ObjectID activation.ObjectID
	Force    bool
}

type handleResponse struct {
	Handle activation.Handle
}

type registerGroupRequest struct {
	Descriptor activation.GroupDescriptor
}

type groupIDResponse struct {
	GroupID activation.GroupID
}

type groupRequest struct {
	GroupID activation.GroupID
}

type registerObjectRequest struct {
	Descriptor activation.Descriptor
}

type objectIDResponse struct {
	ObjectID activation.ObjectID
}

type objectRequest struct {
	ObjectID activation.ObjectID
}

type setDescriptorRequest struct {
	ObjectID   activation.ObjectID
	Descriptor activation.Descriptor
}

type descriptorResponse struct {
	Descriptor activation.Descriptor
}

type setGroupDescriptorRequest struct {
	GroupID    activation.GroupID
	Descriptor activation.GroupDescriptor
}

type groupDescriptorResponse struct {
	Descriptor activation.GroupDescriptor
}

type activeGroupRequest struct {
	GroupID activation.GroupID

	// Instantiator is the address at which the group process serves its
	// instantiator.
	Instantiator string
	Incarnation  uint64
}

type activeObjectRequest struct {
	ObjectID activation.ObjectID
	Handle   activation.Handle
}

type inactiveGroupRequest struct {
	GroupID     activation.GroupID
	Incarnation uint64
	Crashed     bool
}

type newInstanceRequest struct {
	ObjectID   activation.ObjectID
	Descriptor activation.Descriptor
}
