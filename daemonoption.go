package actd

import (
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/metrics"
	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/actd/internal/throttle"
	"github.com/dogmatiq/actd/internal/wal"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DefaultLogDirectory is the default directory that contains the
	// daemon's log and snapshot files.
	//
	// It is used when the WithStore() option is omitted.
	DefaultLogDirectory = "log"

	// DefaultSnapshotInterval is the default number of log records written
	// between snapshots.
	//
	// It is overridden by the WithSnapshotInterval() option.
	DefaultSnapshotInterval = wal.DefaultSnapshotInterval

	// DefaultGroupThrottle is the default number of group processes that may
	// be starting at the same time.
	//
	// It is overridden by the WithGroupThrottle() option.
	DefaultGroupThrottle = throttle.DefaultLimit

	// DefaultExecTimeout is the default time a group process has to attach
	// to the daemon after it is started.
	//
	// It is overridden by the WithExecTimeout() option.
	DefaultExecTimeout = 30 * time.Second

	// DefaultGroupTimeout is the default time a group process has to exit
	// after it is asked to terminate, before it is killed.
	//
	// It is overridden by the WithGroupTimeout() option.
	DefaultGroupTimeout = 60 * time.Second

	// DefaultGroupCommand is the default command used to start group
	// processes whose descriptors do not specify one.
	//
	// It is overridden by the WithGroupCommand() option.
	DefaultGroupCommand = []string{"actd-group"}

	// DefaultExecPolicy is the default policy that decides which commands
	// may be used to start group processes.
	//
	// It is overridden by the WithExecPolicy() option.
	DefaultExecPolicy activation.ExecPolicy = activation.AllowAll

	// DefaultLogger is the default target for log messages produced by the
	// daemon.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// DaemonOption configures the behavior of a daemon.
type DaemonOption func(*daemonOptions)

// WithStore returns a daemon option that sets the store used to persist the
// daemon's log and snapshots.
//
// If this option is omitted or s is nil, a file store in DefaultLogDirectory
// is used.
func WithStore(s wal.Store) DaemonOption {
	return func(opts *daemonOptions) {
		opts.Store = s
	}
}

// WithLogDirectory returns a daemon option that stores the daemon's log and
// snapshots as files in the given directory.
func WithLogDirectory(dir string) DaemonOption {
	return WithStore(&wal.FileStore{Dir: dir})
}

// WithSnapshotInterval returns a daemon option that sets the number of log
// records written between snapshots.
//
// If this option is omitted or n is non-positive, DefaultSnapshotInterval is
// used.
func WithSnapshotInterval(n int) DaemonOption {
	return func(opts *daemonOptions) {
		opts.SnapshotInterval = n
	}
}

// WithGroupThrottle returns a daemon option that limits the number of group
// processes that may be starting at the same time.
//
// If this option is omitted or n is non-positive, DefaultGroupThrottle is
// used.
func WithGroupThrottle(n int) DaemonOption {
	return func(opts *daemonOptions) {
		opts.GroupThrottle = n
	}
}

// WithExecTimeout returns a daemon option that sets the time a group process
// has to attach to the daemon after it is started.
//
// If this option is omitted or d is zero, DefaultExecTimeout is used.
func WithExecTimeout(d time.Duration) DaemonOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *daemonOptions) {
		opts.ExecTimeout = d
	}
}

// WithGroupTimeout returns a daemon option that sets the time a group process
// has to exit after it is asked to terminate.
//
// If this option is omitted or d is zero, DefaultGroupTimeout is used.
func WithGroupTimeout(d time.Duration) DaemonOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *daemonOptions) {
		opts.GroupTimeout = d
	}
}

// WithGroupCommand returns a daemon option that sets the command used to
// start group processes.
//
// argv[0] is the executable, which a group descriptor may override. The
// remaining arguments follow the group's own options.
//
// If this option is omitted or argv is empty, DefaultGroupCommand is used.
func WithGroupCommand(argv ...string) DaemonOption {
	return func(opts *daemonOptions) {
		opts.GroupCommand = argv
	}
}

// WithExecPolicy returns a daemon option that sets the policy used to decide
// which commands may be used to start group processes.
//
// If this option is omitted or p is nil, DefaultExecPolicy is used.
func WithExecPolicy(p activation.ExecPolicy) DaemonOption {
	return func(opts *daemonOptions) {
		opts.ExecPolicy = p
	}
}

// WithLauncher returns a daemon option that sets the launcher used to start
// group processes.
//
// If this option is omitted or l is nil, group processes are started as
// operating system processes.
func WithLauncher(l process.Launcher) DaemonOption {
	return func(opts *daemonOptions) {
		opts.Launcher = l
	}
}

// WithDebugExec returns a daemon option that causes the command line of each
// group process to be logged before it is started.
func WithDebugExec(enabled bool) DaemonOption {
	return func(opts *daemonOptions) {
		opts.DebugExec = enabled
	}
}

// WithMetrics returns a daemon option that registers the daemon's metrics
// with reg.
//
// If this option is omitted, no metrics are recorded.
func WithMetrics(reg prometheus.Registerer) DaemonOption {
	return func(opts *daemonOptions) {
		opts.Metrics = metrics.New(reg)
	}
}

// WithLogger returns a daemon option that sets the target for log messages
// produced by the daemon.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) DaemonOption {
	return func(opts *daemonOptions) {
		opts.Logger = l
	}
}

// daemonOptions is a container for a fully-resolved set of daemon options.
type daemonOptions struct {
	Store            wal.Store
	SnapshotInterval int
	GroupThrottle    int
	ExecTimeout      time.Duration
	GroupTimeout     time.Duration
	GroupCommand     []string
	ExecPolicy       activation.ExecPolicy
	Launcher         process.Launcher
	DebugExec        bool
	Metrics          *metrics.Metrics
	Logger           logging.Logger
	Network          *networkOptions
}

// resolveDaemonOptions returns a fully-populated set of daemon options built
// from the given set of option functions.
func resolveDaemonOptions(options ...DaemonOption) *daemonOptions {
	opts := &daemonOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.Store == nil {
		opts.Store = &wal.FileStore{Dir: DefaultLogDirectory}
	}

	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = DefaultSnapshotInterval
	}

	if opts.GroupThrottle <= 0 {
		opts.GroupThrottle = DefaultGroupThrottle
	}

	if opts.ExecTimeout == 0 {
		opts.ExecTimeout = DefaultExecTimeout
	}

	if opts.GroupTimeout == 0 {
		opts.GroupTimeout = DefaultGroupTimeout
	}

	if len(opts.GroupCommand) == 0 {
		opts.GroupCommand = DefaultGroupCommand
	}

	if opts.ExecPolicy == nil {
		opts.ExecPolicy = DefaultExecPolicy
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	if opts.Launcher == nil {
		opts.Launcher = &process.ExecLauncher{Logger: opts.Logger}
	}

	return opts
}
