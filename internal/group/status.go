package group

// Status is the lifecycle status of a group entry.
type Status int

const (
	// Normal means there is no process, or the process is attached.
	Normal Status = iota

	// Creating means a process has been started but has not yet attached.
	Creating

	// Terminate means the process is to be terminated before it is next
	// used, and must not be restarted.
	Terminate

	// Terminating means the process has been asked to exit and the entry is
	// waiting for it to do so.
	Terminating
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case Creating:
		return "creating"
	case Terminate:
		return "terminate"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}
