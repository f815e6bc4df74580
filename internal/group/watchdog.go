package group

import (
	"context"

	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/dodeca/logging"
)

// watchdog observes the exit of a single group process.
type watchdog struct {
	name        string
	entry       *Entry
	child       process.Process
	incarnation uint64
	quit        chan struct{}

	// restart and quitting are guarded by the entry's mutex.
	restart  bool
	quitting bool
}

func (w *watchdog) run(ctx context.Context) {
	select {
	case <-w.child.Done():
	case <-w.quit:
		return
	case <-ctx.Done():
		return
	}

	e := w.entry
	e.m.Lock()

	if w.quitting || e.incarnation != w.incarnation {
		e.m.Unlock()
		return
	}

	expected := e.status == Terminating || e.status == Terminate
	restart := w.restart &&
		e.status != Creating &&
		!e.env.ShuttingDown()

	e.reset()
	e.childGone()
	e.m.Unlock()

	e.env.Metrics.GroupExited(expected)

	if err := w.child.Err(); err != nil {
		logging.Log(e.logger, "%s exited: %s", w.name, err)
	} else {
		logging.Log(e.logger, "%s exited", w.name)
	}

	if restart {
		// Errors are logged by RestartServices().
		_ = e.RestartServices(ctx)
	}
}

// noRestart prevents the watchdog from restarting objects when the process
// exits. The entry's mutex must be held.
func (w *watchdog) noRestart() {
	w.restart = false
}

// dispose stops the watchdog. The entry's mutex must be held.
func (w *watchdog) dispose() {
	if !w.quitting {
		w.quitting = true
		close(w.quit)
	}
}
