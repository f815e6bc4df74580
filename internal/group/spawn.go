package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/bootstrap"
	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/dodeca/logging"
)

var (
	errNoCommand       = errors.New("no group command is configured")
	errExited          = errors.New("process exited before attaching")
	errTerminatedEarly = errors.New("process was terminated before attaching")
)

// instantiator returns the instantiator of the group's current process,
// starting a new process if necessary. e.m must be held.
func (e *Entry) instantiator(ctx context.Context) (activation.Instantiator, error) {
	if err := e.await(ctx); err != nil {
		return nil, err
	}

	if e.inst != nil {
		return e.inst, nil
	}

	if err := e.checkRemoved(); err != nil {
		return nil, err
	}

	return e.spawn(ctx)
}

// spawn starts a new incarnation of the group and waits for it to attach. e.m
// must be held and the status must be Normal.
func (e *Entry) spawn(ctx context.Context) (activation.Instantiator, error) {
	seq, err := e.env.Throttle.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.env.Throttle.Release()

	argv := CommandLine(e.env.Command, e.desc)
	if len(argv) == 0 {
		return nil, activation.SpawnError{GroupID: e.ID, Cause: errNoCommand}
	}

	if e.env.Policy != nil {
		if err := e.env.Policy.CheckExecCommand(e.desc.Clone(), argv); err != nil {
			return nil, activation.SpawnError{GroupID: e.ID, Cause: err}
		}
	}

	inc := e.incarnation + 1
	if err := e.env.Log.Append(ctx, record.GroupIncarnation{
		GroupID:     e.ID,
		Incarnation: inc,
	}); err != nil {
		return nil, err
	}
	e.incarnation = inc

	if e.env.DebugExec {
		logging.Log(e.logger, "starting incarnation %d: %s", inc, strings.Join(argv, " "))
	}

	name := fmt.Sprintf("Group-%d", seq)
	var env map[string]string
	if c := e.desc.Command; c != nil {
		env = c.Env
	}

	child, err := e.env.Launcher.Launch(process.Command{
		Name: name,
		Argv: argv,
		Env:  env,
	})
	if err != nil {
		return nil, activation.SpawnError{GroupID: e.ID, Cause: err}
	}

	done := e.env.Metrics.SpawnStarted()

	w := &watchdog{
		name:        fmt.Sprintf("%s-%d", name, inc),
		entry:       e,
		child:       child,
		incarnation: inc,
		restart:     true,
		quit:        make(chan struct{}),
	}

	e.child = child
	e.watchdog = w
	e.status = Creating
	e.notify()
	e.goroutine(w.run)

	logging.Log(e.logger, "started incarnation %d as %s (pid %d)", inc, name, child.PID())

	inst, err := e.attach(ctx, child, inc)
	done(err)

	if err != nil {
		logging.Log(e.logger, "incarnation %d failed to start: %s", inc, err)

		if e.child == child {
			w.noRestart()
			if e.status == Creating {
				e.terminate()
			}
		}

		return nil, err
	}

	return inst, nil
}

// attach sends the bootstrap message to child and waits for it to attach. e.m
// must be held.
func (e *Entry) attach(
	ctx context.Context,
	child process.Process,
	inc uint64,
) (activation.Instantiator, error) {
	if err := e.bootstrap(child, inc); err != nil {
		return nil, activation.SpawnError{GroupID: e.ID, Cause: err}
	}

	deadline := time.Now().Add(e.env.ExecTimeout)

	for {
		if e.inst != nil && e.child == child {
			return e.inst, nil
		}

		switch {
		case e.removed:
			return nil, activation.UnknownGroupError{GroupID: e.ID}
		case e.env.ShuttingDown():
			return nil, activation.ErrShuttingDown
		case process.Exited(child):
			return nil, activation.SpawnError{GroupID: e.ID, Cause: errExited}
		case e.child != child || e.status != Creating:
			return nil, activation.SpawnError{GroupID: e.ID, Cause: errTerminatedEarly}
		case !time.Now().Before(deadline):
			return nil, activation.TimeoutError{GroupID: e.ID}
		}

		if err := e.wait(
			ctx,
			deadline,
			child.Done(),
			e.env.Shutdown.Done(),
		); err != nil {
			return nil, err
		}
	}
}

// bootstrap writes the bootstrap message to the process's input, then closes
// it.
func (e *Entry) bootstrap(child process.Process, inc uint64) error {
	in := child.Stdin()

	err := bootstrap.Write(in, bootstrap.Message{
		GroupID:       e.ID,
		Descriptor:    e.desc.Clone(),
		Incarnation:   inc,
		SystemAddress: e.env.SystemAddress,
	})

	if cerr := in.Close(); err == nil {
		err = cerr
	}

	return err
}
