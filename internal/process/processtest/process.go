// Package processtest provides test implementations of the process package's
// interfaces.
package processtest

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/actd/internal/process"
)

// ErrTerminated is the exit error of a process stopped by Terminate().
var ErrTerminated = errors.New("signal: terminated")

// ErrKilled is the exit error of a process stopped by Kill().
var ErrKilled = errors.New("signal: killed")

var pids atomic.Int64

// Process is a test implementation of process.Process.
type Process struct {
	// Command is the command that the process was launched with.
	Command process.Command

	// IgnoreTerminate causes Terminate() to have no effect.
	IgnoreTerminate bool

	pid       int
	once      sync.Once
	done      chan struct{}
	m         sync.Mutex
	err       error
	stdin     bytes.Buffer
	stdinDone chan struct{}
}

// NewProcess returns a running process that was started with c.
func NewProcess(c process.Command) *Process {
	return &Process{
		Command:   c,
		pid:       int(pids.Add(1)),
		done:      make(chan struct{}),
		stdinDone: make(chan struct{}),
	}
}

// PID returns a unique fake process ID.
func (p *Process) PID() int {
	return p.pid
}

// Stdin returns a writer that buffers the process's input.
func (p *Process) Stdin() io.WriteCloser {
	return stdin{p}
}

// StdinClosed returns a channel that is closed when the process's input is
// closed.
func (p *Process) StdinClosed() <-chan struct{} {
	return p.stdinDone
}

// Input returns the data written to the process's input.
func (p *Process) Input() []byte {
	p.m.Lock()
	defer p.m.Unlock()
	return bytes.Clone(p.stdin.Bytes())
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the error passed to Exit().
func (p *Process) Err() error {
	p.m.Lock()
	defer p.m.Unlock()
	return p.err
}

// Terminate exits the process with ErrTerminated, unless IgnoreTerminate is
// true.
func (p *Process) Terminate() error {
	if !p.IgnoreTerminate {
		p.Exit(ErrTerminated)
	}
	return nil
}

// Kill exits the process with ErrKilled.
func (p *Process) Kill() error {
	p.Exit(ErrKilled)
	return nil
}

// Exit causes the process to exit with the given error. It has no effect if
// the process has already exited.
func (p *Process) Exit(err error) {
	p.once.Do(func() {
		p.m.Lock()
		p.err = err
		p.m.Unlock()
		close(p.done)
	})
}

type stdin struct {
	p *Process
}

func (w stdin) Write(data []byte) (int, error) {
	w.p.m.Lock()
	defer w.p.m.Unlock()

	select {
	case <-w.p.stdinDone:
		return 0, io.ErrClosedPipe
	default:
		return w.p.stdin.Write(data)
	}
}

func (w stdin) Close() error {
	w.p.m.Lock()
	defer w.p.m.Unlock()

	select {
	case <-w.p.stdinDone:
	default:
		close(w.p.stdinDone)
	}

	return nil
}
