package actd

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/api"
	"github.com/dogmatiq/actd/internal/group"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/actd/internal/throttle"
	"github.com/dogmatiq/actd/internal/wal"
	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/sync/errgroup"
)

// Daemon is an activation daemon.
//
// It activates objects on demand within group processes that it starts,
// supervises those processes, and persists its registry so that it survives
// a restart.
type Daemon struct {
	opts     *daemonOptions
	log      *wal.Log
	throttle *throttle.Throttle
	env      *group.Env
	pool     *api.InstantiatorPool
	index    index

	started atomic.Bool
	ready   chan struct{}
	stopped chan struct{}
	phase   atomic.Int32

	shutdown      context.Context
	beginShutdown context.CancelFunc

	// tasks is the context of background tasks started by group entries.
	tasks context.Context

	fatalOnce sync.Once
	fatal     error

	m      sync.RWMutex
	groups map[activation.GroupID]*group.Entry
}

var (
	_ activation.Activator = (*Daemon)(nil)
	_ activation.System    = (*Daemon)(nil)
	_ activation.Monitor   = (*Daemon)(nil)
)

// Phase is a stage in the lifetime of a daemon.
type Phase int32

const (
	// Running means the daemon accepts requests.
	Running Phase = iota

	// Draining means the daemon is shutting down. Requests are rejected and
	// group processes are being terminated.
	Draining

	// Stopped means every group process has exited and the log is closed.
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// New returns a new daemon.
func New(options ...DaemonOption) *Daemon {
	opts := resolveDaemonOptions(options...)

	d := &Daemon{
		opts:    opts,
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
		groups:  map[activation.GroupID]*group.Entry{},
		pool:    &api.InstantiatorPool{},
	}

	d.shutdown, d.beginShutdown = context.WithCancel(context.Background())
	d.throttle = throttle.New(opts.GroupThrottle, d.shutdown)

	d.log = &wal.Log{
		Store:             opts.Store,
		Marshaler:         record.NewMarshaler(),
		SnapshotInterval:  opts.SnapshotInterval,
		Logger:            opts.Logger,
		Metrics:           opts.Metrics,
		Gate:              d.gate,
		OnSnapshotFailure: d.snapshotFailed,
	}

	d.env = &group.Env{
		Log:          d.log,
		Index:        &d.index,
		Throttle:     d.throttle,
		Launcher:     opts.Launcher,
		Policy:       opts.ExecPolicy,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		Command:      opts.GroupCommand,
		DebugExec:    opts.DebugExec,
		ExecTimeout:  opts.ExecTimeout,
		GroupTimeout: opts.GroupTimeout,
		Shutdown:     d.shutdown,
		Go:           d.goTask,
	}

	if n := opts.Network; n != nil {
		d.pool.DialOptions = n.DialOptions
		d.pool.CallTimeout = n.CallTimeout
	}

	return d
}

// Run recovers the daemon's state and serves requests until ctx is canceled,
// the daemon is shut down, or a fatal error occurs.
//
// When the daemon is shut down by a call to Shutdown(), group processes are
// terminated gracefully and Run() returns nil. When ctx is canceled, group
// processes are killed and Run() returns ctx.Err().
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("daemon is already running")
	}
	defer close(d.stopped)
	defer d.beginShutdown()

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	d.tasks = ctx

	if err := d.recover(ctx); err != nil {
		d.phase.Store(int32(Stopped))
		_ = d.log.Close()
		return err
	}

	if d.opts.Network != nil {
		lis, err := d.listen()
		if err != nil {
			d.phase.Store(int32(Stopped))
			_ = d.log.Close()
			return err
		}

		d.env.SystemAddress = localAddress(lis.Addr())

		g.Go(func() error {
			return d.serve(ctx, lis)
		})
	}

	close(d.ready)
	logging.Log(d.opts.Logger, "activation daemon is ready")

	g.Go(func() error {
		d.restartAll(ctx)
		return nil
	})

	g.Go(func() error {
		return d.supervise(ctx)
	})

	err := g.Wait()

	if errors.Is(err, errStopped) {
		return d.fatal
	}

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// Ready returns a channel that is closed once the daemon has recovered its
// state and accepts requests.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Done returns a channel that is closed once Run() has returned.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

// Phase returns the daemon's current phase.
func (d *Daemon) Phase() Phase {
	return Phase(d.phase.Load())
}

// recover loads the daemon's state from the log and builds a group entry for
// each registered group.
func (d *Daemon) recover(ctx context.Context) error {
	state, err := d.log.Recover(ctx)
	if err != nil {
		return err
	}

	d.m.Lock()
	defer d.m.Unlock()

	for id, g := range state.Groups {
		d.groups[id] = group.Restore(id, g, d.env)
	}

	logging.Log(
		d.opts.Logger,
		"recovered %d group(s) containing %d object(s)",
		len(state.Groups),
		len(state.Objects),
	)

	return nil
}

// restartAll activates the objects of every group that are marked for
// restart.
func (d *Daemon) restartAll(ctx context.Context) {
	for _, e := range d.entries() {
		if d.shutdown.Err() != nil {
			return
		}

		// Errors are logged by the entry.
		_ = e.RestartServices(ctx)
	}
}

// entries returns the group entries, ordered by ID.
func (d *Daemon) entries() []*group.Entry {
	d.m.RLock()
	defer d.m.RUnlock()

	entries := make([]*group.Entry, 0, len(d.groups))
	for _, e := range d.groups {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})

	return entries
}

// goTask runs fn in the background for as long as the daemon is running.
func (d *Daemon) goTask(fn func(ctx context.Context)) {
	go fn(d.tasks)
}

// gate rejects log records once the daemon has begun to shut down.
func (d *Daemon) gate() error {
	if d.shutdown.Err() != nil {
		return activation.ErrShuttingDown
	}
	return nil
}

// snapshotFailed shuts the daemon down because its log can no longer be
// truncated.
func (d *Daemon) snapshotFailed(err activation.SnapshotError) {
	d.fatalOnce.Do(func() {
		d.fatal = err
	})

	logging.Log(d.opts.Logger, "shutting down: %s", err)
	d.beginShutdown()
}

// index maps each registered object to its group.
type index struct {
	m      sync.RWMutex
	groups map[activation.ObjectID]activation.GroupID
}

func (i *index) Put(id activation.ObjectID, g activation.GroupID) {
	i.m.Lock()
	defer i.m.Unlock()

	if i.groups == nil {
		i.groups = map[activation.ObjectID]activation.GroupID{}
	}

	i.groups[id] = g
}

func (i *index) Delete(id activation.ObjectID) {
	i.m.Lock()
	defer i.m.Unlock()

	delete(i.groups, id)
}

func (i *index) Get(id activation.ObjectID) (activation.GroupID, bool) {
	i.m.RLock()
	defer i.m.RUnlock()

	g, ok := i.groups[id]
	return g, ok
}
