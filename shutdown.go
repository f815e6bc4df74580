package actd

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// errStopped is returned by supervise() when the daemon stops because it
// was shut down, rather than because its context was canceled.
var errStopped = errors.New("daemon stopped")

// supervise waits for the daemon to be shut down, then stops it.
func (d *Daemon) supervise(ctx context.Context) error {
	select {
	case <-ctx.Done():
		d.beginShutdown()
		d.phase.Store(int32(Draining))
		logging.Log(d.opts.Logger, "killing all group processes")
		d.stopFast()
		return ctx.Err()

	case <-d.shutdown.Done():
		d.phase.Store(int32(Draining))
		logging.Log(d.opts.Logger, "terminating all group processes")

		if err := d.drain(ctx); err != nil {
			logging.Log(d.opts.Logger, "unable to terminate all group processes: %s", err)
			d.stopFast()
			return err
		}

		d.stop()
		return errStopped
	}
}

// drain terminates every group process and waits for them to exit.
func (d *Daemon) drain(ctx context.Context) error {
	var (
		g   errgroup.Group
		m   sync.Mutex
		err error
	)

	for _, e := range d.entries() {
		e := e // capture loop variable

		g.Go(func() error {
			if serr := e.Shutdown(ctx); serr != nil {
				m.Lock()
				err = multierr.Append(err, serr)
				m.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	return err
}

// stopFast kills every group process without waiting for them to exit, then
// stops the daemon.
func (d *Daemon) stopFast() {
	for _, e := range d.entries() {
		e.ShutdownFast()
	}

	d.stop()
}

// stop releases the daemon's resources.
func (d *Daemon) stop() {
	err := multierr.Append(
		d.log.Close(),
		d.pool.Close(),
	)

	if err != nil {
		logging.Log(d.opts.Logger, "unable to release daemon resources: %s", err)
	}

	d.phase.Store(int32(Stopped))
	logging.Log(d.opts.Logger, "activation daemon stopped")
}
