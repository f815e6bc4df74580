// Package wal implements the daemon's durable log of state mutations and its
// periodic snapshots.
package wal

import (
	"context"

	"github.com/dogmatiq/marshalkit"
)

// Store is the durable storage beneath a Log.
type Store interface {
	// Load returns the most recent snapshot, if any, and every entry that was
	// appended after it, in the order they were appended.
	Load(ctx context.Context) (Contents, error)

	// Append durably stores an entry.
	Append(ctx context.Context, e Item) error

	// WriteSnapshot durably replaces the snapshot with p, which reflects every
	// entry up to and including seq, then discards those entries.
	WriteSnapshot(ctx context.Context, seq uint64, p marshalkit.Packet) error

	// Close closes the store.
	Close() error
}

// Item is a single record in the log.
type Item struct {
	// Seq is the entry's position in the log. It increases by one with each
	// entry and is never reset.
	Seq uint64

	// Packet is the marshaled record.
	Packet marshalkit.Packet
}

// Contents is the data loaded from a Store.
type Contents struct {
	// Snapshot is the most recent snapshot, or nil if none has been written.
	Snapshot *marshalkit.Packet

	// SnapshotSeq is the sequence number of the last entry reflected in the
	// snapshot.
	SnapshotSeq uint64

	// Entries are the entries appended after the snapshot.
	Entries []Item
}
