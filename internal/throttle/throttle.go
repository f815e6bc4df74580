// Package throttle limits the number of group processes that may be starting
// at the same time.
package throttle

import (
	"context"
	"sync/atomic"

	"github.com/dogmatiq/actd/activation"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the default number of concurrent spawns.
const DefaultLimit = 3

// Throttle limits the number of group processes that may be starting
// concurrently.
type Throttle struct {
	n        int
	sem      *semaphore.Weighted
	shutdown context.Context
	spawns   atomic.Uint64
	inFlight atomic.Int64
}

// New returns a throttle that allows n concurrent spawns.
//
// Once shutdown is canceled, blocked and future calls to Acquire() fail with
// activation.ErrShuttingDown.
func New(n int, shutdown context.Context) *Throttle {
	if n <= 0 {
		n = DefaultLimit
	}

	return &Throttle{
		n:        n,
		sem:      semaphore.NewWeighted(int64(n)),
		shutdown: shutdown,
	}
}

// Limit returns the number of concurrent spawns allowed.
func (t *Throttle) Limit() int {
	return t.n
}

// InFlight returns the number of permits currently held.
func (t *Throttle) InFlight() int {
	return int(t.inFlight.Load())
}

// Acquire blocks until the caller may start a group process.
//
// It returns the sequence number of the spawn, which is unique for the
// lifetime of the throttle. The caller must call Release() once the process
// has attached, or the attempt has failed.
func (t *Throttle) Acquire(ctx context.Context) (uint64, error) {
	if t.shutdown.Err() != nil {
		return 0, activation.ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(t.shutdown, cancel)
	defer stop()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		if t.shutdown.Err() != nil {
			return 0, activation.ErrShuttingDown
		}
		return 0, err
	}

	if t.shutdown.Err() != nil {
		t.sem.Release(1)
		return 0, activation.ErrShuttingDown
	}

	t.inFlight.Add(1)

	return t.spawns.Add(1) - 1, nil
}

// Release returns a permit acquired by Acquire().
func (t *Throttle) Release() {
	t.inFlight.Add(-1)
	t.sem.Release(1)
}
