package activation

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjectID uniquely identifies an activatable object.
type ObjectID string

// NewObjectID returns a new randomly generated object ID.
func NewObjectID() ObjectID {
	return ObjectID(uuid.NewString())
}

// ParseObjectID parses s as an object ID.
func ParseObjectID(s string) (ObjectID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid object ID %q: %w", s, err)
	}

	return ObjectID(s), nil
}

// GroupID uniquely identifies an activation group.
type GroupID string

// NewGroupID returns a new randomly generated group ID.
func NewGroupID() GroupID {
	return GroupID(uuid.NewString())
}

// ParseGroupID parses s as a group ID.
func ParseGroupID(s string) (GroupID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid group ID %q: %w", s, err)
	}

	return GroupID(s), nil
}
