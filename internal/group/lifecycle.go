package group

import (
	"context"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
)

// ActiveGroup attaches a group process's instantiator to the entry.
//
// It succeeds if inst is already attached.
func (e *Entry) ActiveGroup(inst activation.Instantiator, incarnation uint64) error {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return err
	}

	if err := e.checkIncarnation(incarnation); err != nil {
		return err
	}

	if e.inst != nil {
		if e.inst == inst {
			return nil
		}
		return activation.ErrGroupAlreadyActive
	}

	if e.child != nil && e.status != Creating {
		return activation.ErrGroupNotCreating
	}

	e.inst = inst
	e.status = Normal
	e.notify()

	logging.Log(e.logger, "incarnation %d is active", incarnation)

	return nil
}

// InactiveGroup detaches the current incarnation's instantiator.
//
// If crashed is true the process is terminated and restartable objects are
// activated again once it exits. Otherwise the process is terminated before
// the group is next used, and nothing is restarted.
func (e *Entry) InactiveGroup(incarnation uint64, crashed bool) error {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return err
	}

	if err := e.checkIncarnation(incarnation); err != nil {
		return err
	}

	e.inactive(crashed)

	return nil
}

// Shutdown terminates the group's process and waits for it to exit.
func (e *Entry) Shutdown(ctx context.Context) error {
	e.m.Lock()
	defer e.m.Unlock()

	e.reset()

	if e.status != Terminating {
		e.terminate()
	}

	return e.await(ctx)
}

// ShutdownFast kills the group's process without waiting for it to exit.
func (e *Entry) ShutdownFast() {
	e.m.Lock()
	defer e.m.Unlock()

	e.reset()

	if e.child != nil {
		if err := e.child.Kill(); err != nil {
			logging.Log(e.logger, "unable to kill process %d: %s", e.child.PID(), err)
		}
	}
}

// Unregister removes the group and all of its objects.
func (e *Entry) Unregister(ctx context.Context) error {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.checkRemoved(); err != nil {
		return err
	}

	if err := e.env.Log.Append(ctx, record.UnregisterGroup{GroupID: e.ID}); err != nil {
		return err
	}

	e.removed = true

	for id, o := range e.objects {
		o.removed.Store(true)
		e.env.Index.Delete(id)
	}

	e.reset()
	e.objects = map[activation.ObjectID]*object{}

	if e.child != nil {
		if err := e.child.Kill(); err != nil {
			logging.Log(e.logger, "unable to kill process %d: %s", e.child.PID(), err)
		}
		e.childGone()
	}

	e.status = Normal
	e.notify()

	logging.Log(e.logger, "unregistered")

	return nil
}

// inactive detaches the current instantiator. e.m must be held.
func (e *Entry) inactive(crashed bool) {
	e.reset()

	if crashed {
		if e.status != Terminating {
			e.terminate()
		}
	} else if e.child != nil && e.status == Normal {
		e.status = Terminate
		e.watchdog.noRestart()
		e.notify()
	}
}

// checkIncarnation returns an error if n is not the current incarnation. e.m
// must be held.
func (e *Entry) checkIncarnation(n uint64) error {
	if n != e.incarnation {
		return activation.IncarnationError{
			GroupID:     e.ID,
			Incarnation: n,
			Current:     e.incarnation,
		}
	}
	return nil
}

// reset discards the instantiator and every object's instance. e.m must be
// held.
func (e *Entry) reset() {
	for _, o := range e.objects {
		o.handle.Store(nil)
	}
	e.inst = nil
}

// notify wakes every goroutine blocked in wait(). e.m must be held.
func (e *Entry) notify() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// wait releases e.m until the entry changes, the deadline passes, or one of
// the given channels is closed. A zero deadline and nil channels are ignored.
func (e *Entry) wait(
	ctx context.Context,
	deadline time.Time,
	exited <-chan struct{},
	shutdown <-chan struct{},
) error {
	changed := e.changed

	e.m.Unlock()
	defer e.m.Lock()

	done := ctx.Done()
	if !deadline.IsZero() {
		dctx, cancel := linger.ContextWithTimeout(ctx, time.Until(deadline))
		defer cancel()
		done = dctx.Done()
	}

	select {
	case <-changed:
	case <-exited:
	case <-shutdown:
	case <-done:
		// A nil error means only the deadline has passed.
		return ctx.Err()
	}

	return nil
}

// await blocks until the entry reaches the Normal status. e.m must be held.
func (e *Entry) await(ctx context.Context) error {
	for {
		switch e.status {
		case Normal:
			return nil

		case Creating:
			if e.env.ShuttingDown() {
				return activation.ErrShuttingDown
			}

			if err := e.wait(ctx, time.Time{}, nil, e.env.Shutdown.Done()); err != nil {
				return err
			}

		case Terminate:
			e.terminate()

		case Terminating:
			if process.Exited(e.child) {
				// The watchdog completes the transition.
				if err := e.wait(ctx, time.Time{}, nil, nil); err != nil {
					return err
				}
			} else if time.Now().Before(e.waitUntil) {
				if err := e.wait(ctx, e.waitUntil, e.child.Done(), nil); err != nil {
					return err
				}
			} else {
				logging.Log(
					e.logger,
					"process %d did not exit within %s, killing it",
					e.child.PID(),
					e.env.GroupTimeout,
				)

				if err := e.child.Kill(); err != nil {
					logging.Log(e.logger, "unable to kill process %d: %s", e.child.PID(), err)
					e.childGone()
				} else {
					e.waitUntil = time.Now().Add(e.env.GroupTimeout)
				}
			}
		}
	}
}

// terminate asks the process to exit. e.m must be held.
func (e *Entry) terminate() {
	if e.child == nil {
		e.status = Normal
		e.notify()
		return
	}

	if !process.Exited(e.child) {
		if err := e.child.Terminate(); err != nil {
			logging.Log(e.logger, "unable to terminate process %d: %s", e.child.PID(), err)
		}
	}

	e.status = Terminating
	e.waitUntil = time.Now().Add(e.env.GroupTimeout)
	e.notify()
}

// childGone forgets the process. e.m must be held.
func (e *Entry) childGone() {
	if e.child == nil {
		return
	}

	e.child = nil
	e.watchdog.dispose()
	e.watchdog = nil
	e.status = Normal
	e.notify()
}
