// Package group manages the runtime state of activation groups and the
// processes that host them.
package group

import (
	"context"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/metrics"
	"github.com/dogmatiq/actd/internal/process"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/actd/internal/throttle"
	"github.com/dogmatiq/dodeca/logging"
)

// Log is the durable log that every mutation is written to before it is
// applied.
type Log interface {
	Append(ctx context.Context, r record.Record) error
}

// Index maps objects to the groups that host them.
type Index interface {
	Put(activation.ObjectID, activation.GroupID)
	Delete(activation.ObjectID)
}

// Env is the daemon state shared by every entry.
type Env struct {
	Log      Log
	Index    Index
	Throttle *throttle.Throttle
	Launcher process.Launcher
	Policy   activation.ExecPolicy
	Logger   logging.Logger
	Metrics  *metrics.Metrics

	// Command is the daemon's group command. Command[0] is the executable
	// used when a group descriptor does not specify one.
	Command []string

	// SystemAddress is sent to each group process so that it can attach.
	SystemAddress string

	// DebugExec causes each command line to be logged before it is run.
	DebugExec bool

	// ExecTimeout is the time a group process has to attach after it is
	// started.
	ExecTimeout time.Duration

	// GroupTimeout is the time a group process has to exit after it is
	// asked to terminate.
	GroupTimeout time.Duration

	// Shutdown is canceled when the daemon begins to shut down.
	Shutdown context.Context

	// Go runs fn in a background task. ctx is canceled when the daemon stops.
	Go func(fn func(ctx context.Context))
}

// ShuttingDown returns true if the daemon has begun to shut down.
func (env *Env) ShuttingDown() bool {
	return env.Shutdown.Err() != nil
}
