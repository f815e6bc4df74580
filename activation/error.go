package activation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShuttingDown is returned by operations that are attempted while the
	// daemon is shutting down.
	ErrShuttingDown = errors.New("activation system shutting down")

	// ErrGroupAlreadyActive is returned when a group process attaches to a
	// group that already has a different instantiator.
	ErrGroupAlreadyActive = errors.New("group already active")

	// ErrGroupNotCreating is returned when a process attaches to a group
	// whose own process is not waiting to attach.
	ErrGroupNotCreating = errors.New("group not being created")

	// ErrUnreachable indicates that a group process could not be contacted,
	// typically because it has exited.
	ErrUnreachable = errors.New("group process unreachable")

	// ErrNoSuchObject indicates that the instantiator of a group no longer
	// exists within its process.
	ErrNoSuchObject = errors.New("no such object in group process")

	// ErrInactiveGroup indicates that a group process considers itself
	// inactive.
	ErrInactiveGroup = errors.New("group is inactive")
)

// UnknownObjectError indicates that an object is not registered, or has been
// unregistered.
type UnknownObjectError struct {
	ObjectID ObjectID
}

func (e UnknownObjectError) Error() string {
	return fmt.Sprintf("object with ID '%s' is not registered", e.ObjectID)
}

// UnknownGroupError indicates that a group is not registered, or has been
// unregistered.
type UnknownGroupError struct {
	GroupID GroupID
}

func (e UnknownGroupError) Error() string {
	return fmt.Sprintf("group with ID '%s' is not registered", e.GroupID)
}

// IsNotFound returns true if err indicates that an object or group is not
// registered.
func IsNotFound(err error) bool {
	return errors.As(err, &UnknownObjectError{}) ||
		errors.As(err, &UnknownGroupError{})
}

// IncarnationError indicates that an operation referred to an incarnation of
// a group other than the current one.
type IncarnationError struct {
	GroupID     GroupID
	Incarnation uint64
	Current     uint64
}

func (e IncarnationError) Error() string {
	return fmt.Sprintf(
		"invalid incarnation of group '%s': got %d, current incarnation is %d",
		e.GroupID,
		e.Incarnation,
		e.Current,
	)
}

// InvalidDescriptorError indicates that a descriptor can not be applied to
// an object.
type InvalidDescriptorError struct {
	ObjectID ObjectID
	Reason   string
}

func (e InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor for object '%s': %s", e.ObjectID, e.Reason)
}

// ExecDeniedError indicates that an exec policy refused to allow a group
// process to be started.
type ExecDeniedError struct {
	Argv   []string
	Reason string
}

func (e ExecDeniedError) Error() string {
	return fmt.Sprintf(
		"exec policy denied command [%s]: %s",
		strings.Join(e.Argv, " "),
		e.Reason,
	)
}

// SpawnError indicates that a group process could not be started.
type SpawnError struct {
	GroupID GroupID
	Cause   error
}

func (e SpawnError) Error() string {
	return fmt.Sprintf("unable to create activation group '%s': %s", e.GroupID, e.Cause)
}

func (e SpawnError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates that a group process did not attach within the exec
// timeout.
type TimeoutError struct {
	GroupID GroupID
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timeout creating child process for group '%s'", e.GroupID)
}

// ActivationError indicates that an object could not be activated.
type ActivationError struct {
	ObjectID ObjectID
	Attempts int
	Cause    error
}

func (e ActivationError) Error() string {
	return fmt.Sprintf(
		"activation of object '%s' failed after %d tries: %s",
		e.ObjectID,
		e.Attempts,
		e.Cause,
	)
}

func (e ActivationError) Unwrap() error {
	return e.Cause
}

// RemoteError indicates that a call to a group process failed for a reason
// other than the process being unreachable.
type RemoteError struct {
	Cause error
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("remote call failed: %s", e.Cause)
}

func (e RemoteError) Unwrap() error {
	return e.Cause
}

// LogWriteError indicates that an operation failed because its record could
// not be written to the log. The operation has not been applied.
type LogWriteError struct {
	Cause error
}

func (e LogWriteError) Error() string {
	return fmt.Sprintf("log update failed: %s", e.Cause)
}

func (e LogWriteError) Unwrap() error {
	return e.Cause
}

// SnapshotError indicates that the daemon state could not be written to a
// snapshot. It is fatal to the daemon.
type SnapshotError struct {
	Cause error
}

func (e SnapshotError) Error() string {
	return fmt.Sprintf("log snapshot failed: %s", e.Cause)
}

func (e SnapshotError) Unwrap() error {
	return e.Cause
}
