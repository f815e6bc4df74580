// Package process starts and controls the operating system processes that host
// activation groups.
package process

import (
	"io"
)

// Command describes a process to start.
type Command struct {
	// Name labels the process in log output.
	Name string

	// Argv is the command line. Argv[0] is the executable.
	Argv []string

	// Env contains environment variables to set in addition to those of the
	// daemon.
	Env map[string]string
}

// Process is a running child process.
type Process interface {
	// PID returns the operating system's process ID.
	PID() int

	// Stdin returns the write end of the process's standard input.
	Stdin() io.WriteCloser

	// Done returns a channel that is closed when the process has exited.
	Done() <-chan struct{}

	// Err describes how the process exited. It returns nil if the process
	// exited successfully, or has not exited yet.
	Err() error

	// Terminate asks the process to exit.
	Terminate() error

	// Kill forces the process to exit immediately.
	Kill() error
}

// Launcher starts processes.
type Launcher interface {
	Launch(cmd Command) (Process, error)
}

// Exited returns true if p has exited.
func Exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}
