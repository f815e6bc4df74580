package wal

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/marshalkit"
)

// errClosed is returned when a closed store is used.
var errClosed = errors.New("store is closed")

// MemoryStore is an in-memory Store.
//
// It does not survive a restart of the process, but it does survive being
// closed and re-opened by a new Log.
type MemoryStore struct {
	m           sync.Mutex
	closed      bool
	snapshot    *marshalkit.Packet
	snapshotSeq uint64
	entries     []Item
}

// Load returns the current contents of the store.
func (s *MemoryStore) Load(ctx context.Context) (Contents, error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.closed = false

	return Contents{
		Snapshot:    s.snapshot,
		SnapshotSeq: s.snapshotSeq,
		Entries:     append([]Item(nil), s.entries...),
	}, nil
}

// Append adds an entry to the store.
func (s *MemoryStore) Append(ctx context.Context, e Item) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return errClosed
	}

	// Replace any entry that was left behind by a failed append.
	for i, x := range s.entries {
		if x.Seq >= e.Seq {
			s.entries = s.entries[:i]
			break
		}
	}

	s.entries = append(s.entries, e)

	return nil
}

// WriteSnapshot replaces the snapshot and discards the entries it reflects.
func (s *MemoryStore) WriteSnapshot(ctx context.Context, seq uint64, p marshalkit.Packet) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return errClosed
	}

	s.snapshot = &p
	s.snapshotSeq = seq

	var kept []Item
	for _, e := range s.entries {
		if e.Seq > seq {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	return nil
}

// Close marks the store as closed until the next call to Load().
func (s *MemoryStore) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	s.closed = true

	return nil
}
