package processtest

import (
	"sync"

	"github.com/dogmatiq/actd/internal/process"
)

// Launcher is a test implementation of process.Launcher.
type Launcher struct {
	// LaunchFunc, if non-nil, is called instead of starting a new fake
	// process.
	LaunchFunc func(process.Command) (process.Process, error)

	// OnLaunch, if non-nil, is called with each fake process started by the
	// launcher.
	OnLaunch func(*Process)

	m         sync.Mutex
	processes []*Process
}

// Launch starts a new fake process.
func (l *Launcher) Launch(c process.Command) (process.Process, error) {
	if l.LaunchFunc != nil {
		return l.LaunchFunc(c)
	}

	p := NewProcess(c)

	l.m.Lock()
	l.processes = append(l.processes, p)
	l.m.Unlock()

	if l.OnLaunch != nil {
		l.OnLaunch(p)
	}

	return p, nil
}

// Processes returns the processes started by the launcher, in order.
func (l *Launcher) Processes() []*Process {
	l.m.Lock()
	defer l.m.Unlock()
	return append([]*Process(nil), l.processes...)
}

// Count returns the number of processes started by the launcher.
func (l *Launcher) Count() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.processes)
}
