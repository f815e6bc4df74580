package wal

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/metrics"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/actd/internal/x/syncx"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/marshalkit"
)

// DefaultSnapshotInterval is the default number of records appended between
// snapshots.
const DefaultSnapshotInterval = 200

// ErrClosed is returned when a record is appended to a closed log.
var ErrClosed = errors.New("log is closed")

// Log is a write-ahead log of state mutations.
//
// Records are appended and applied to the durable state under a single lock,
// so the order of the log is the order in which mutations are applied.
type Log struct {
	// Store is the durable storage used by the log.
	Store Store

	// Marshaler marshals records and state. If it is nil,
	// record.NewMarshaler() is used.
	Marshaler marshalkit.ValueMarshaler

	// SnapshotInterval is the number of records appended between snapshots.
	// If it is non-positive, DefaultSnapshotInterval is used.
	SnapshotInterval int

	// Logger is the target for log messages about the log.
	Logger logging.Logger

	// Metrics records the outcome of appends and snapshots.
	Metrics *metrics.Metrics

	// Gate, if non-nil, is called with the log locked before each record is
	// appended. The record is rejected if it returns an error.
	Gate func() error

	// OnSnapshotFailure, if non-nil, is called when a snapshot can not be
	// written. The daemon can no longer truncate its log, so it is expected
	// to shut down.
	OnSnapshotFailure func(activation.SnapshotError)

	m       syncx.Mutex
	state   *record.State
	seq     uint64
	updates int
	closed  bool
}

// Recover loads the most recent snapshot and replays the records appended
// after it.
//
// It returns a copy of the recovered state. It must be called before Append().
func (l *Log) Recover(ctx context.Context) (*record.State, error) {
	if err := l.m.Lock(ctx); err != nil {
		return nil, err
	}
	defer l.m.Unlock()

	if l.Marshaler == nil {
		l.Marshaler = record.NewMarshaler()
	}

	c, err := l.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load log: %w", err)
	}

	state := record.NewState()

	if c.Snapshot != nil {
		state, err = record.UnmarshalState(l.Marshaler, *c.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("unable to load snapshot: %w", err)
		}

		if err := state.Validate(); err != nil {
			return nil, err
		}
	}

	l.seq = c.SnapshotSeq

	for _, e := range c.Entries {
		r, err := record.UnmarshalRecord(l.Marshaler, e.Packet)
		if err != nil {
			return nil, fmt.Errorf("unable to load log entry %d: %w", e.Seq, err)
		}

		if err := record.Apply(state, r); err != nil {
			logging.Log(l.Logger, "log recovery skipped %T at entry %d: %s", r, e.Seq, err)
		}

		l.seq = e.Seq
	}

	logging.Debug(
		l.Logger,
		"recovered %d group(s) and %d object(s) from %d log entries",
		len(state.Groups),
		len(state.Objects),
		len(c.Entries),
	)

	l.state = state
	l.updates = 0
	l.closed = false

	return state.Clone(), nil
}

// Append durably writes r to the log, then applies it to the durable state.
//
// A record that is not consistent with the state is rejected before it is
// written. If the record can not be written, it returns an
// activation.LogWriteError and the state is unchanged. Once the number of records appended since the last
// snapshot reaches the snapshot interval, a snapshot is written. A failed
// snapshot does not cause Append() to fail because r is already durable.
func (l *Log) Append(ctx context.Context, r record.Record) error {
	if err := l.m.Lock(ctx); err != nil {
		return err
	}
	defer l.m.Unlock()

	if l.closed {
		return ErrClosed
	}

	if l.state == nil {
		panic("log has not been recovered")
	}

	if l.Gate != nil {
		if err := l.Gate(); err != nil {
			return err
		}
	}

	if err := record.Check(l.state, r); err != nil {
		return err
	}

	if err := l.append(ctx, r); err != nil {
		logging.Log(l.Logger, "log update of %T failed: %s", r, err)
		l.Metrics.LogAppend(err)

		// The log may now contain a partial entry, so the next successful
		// append is followed by a snapshot.
		l.updates = l.interval()

		return activation.LogWriteError{Cause: err}
	}

	l.Metrics.LogAppend(nil)

	if err := record.Apply(l.state, r); err != nil {
		panic(fmt.Sprintf("checked %T record could not be applied: %s", r, err))
	}

	l.updates++
	if l.updates >= l.interval() {
		l.snapshot(context.WithoutCancel(ctx))
	}

	return nil
}

// State returns a copy of the current durable state.
func (l *Log) State(ctx context.Context) (*record.State, error) {
	if err := l.m.Lock(ctx); err != nil {
		return nil, err
	}
	defer l.m.Unlock()

	if l.state == nil {
		return nil, errors.New("log has not been recovered")
	}

	return l.state.Clone(), nil
}

// Close closes the log and its store.
//
// It waits for any in-progress append to complete.
func (l *Log) Close() error {
	if err := l.m.Lock(context.Background()); err != nil {
		return err
	}
	defer l.m.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	return l.Store.Close()
}

func (l *Log) append(ctx context.Context, r record.Record) error {
	p, err := l.Marshaler.Marshal(r)
	if err != nil {
		return err
	}

	if err := l.Store.Append(ctx, Item{Seq: l.seq + 1, Packet: p}); err != nil {
		return err
	}

	l.seq++

	return nil
}

func (l *Log) snapshot(ctx context.Context) {
	p, err := record.MarshalState(l.Marshaler, l.state)
	if err == nil {
		err = l.Store.WriteSnapshot(ctx, l.seq, p)
	}

	l.Metrics.Snapshot(err)

	if err != nil {
		logging.Log(l.Logger, "log snapshot failed: %s", err)

		if l.OnSnapshotFailure != nil {
			l.OnSnapshotFailure(activation.SnapshotError{Cause: err})
		}

		return
	}

	logging.Debug(l.Logger, "wrote snapshot at log entry %d", l.seq)
	l.updates = 0
}

func (l *Log) interval() int {
	if l.SnapshotInterval > 0 {
		return l.SnapshotInterval
	}

	return DefaultSnapshotInterval
}
