package wal

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dogmatiq/actd/internal/x/bboltx"
	"github.com/dogmatiq/actd/internal/x/packetx"
	"github.com/dogmatiq/marshalkit"
	"go.etcd.io/bbolt"
)

const (
	// LogFile is the name of the log database within a FileStore's directory.
	LogFile = "log.boltdb"

	// SnapshotFile is the name of the snapshot database within a FileStore's
	// directory.
	SnapshotFile = "snapshot.boltdb"
)

var (
	// entriesBucketKey is the key of the bucket in the log database that
	// contains the log entries.
	//
	// The keys are the sequence numbers encoded as 8-byte big-endian values.
	// The values are packets encoded by packetx.
	entriesBucketKey = []byte("entries")

	// snapshotBucketKey is the key of the bucket in the snapshot database
	// that contains the snapshot.
	snapshotBucketKey = []byte("snapshot")

	// snapshotSeqKey is the key of the sequence number of the last entry
	// reflected in the snapshot, encoded as an 8-byte big-endian value.
	snapshotSeqKey = []byte("seq")

	// snapshotStateKey is the key of the snapshot's packet.
	snapshotStateKey = []byte("state")
)

// FileStore is a Store that keeps the log and the snapshot in separate BoltDB
// databases within a directory.
type FileStore struct {
	// Dir is the directory that contains the databases. It is created if it
	// does not exist.
	Dir string

	// Mode is the permission mode used for the database files. If it is zero,
	// 0600 is used.
	Mode os.FileMode

	// Options are the options used to open the databases.
	Options *bbolt.Options

	m        sync.Mutex
	log      *bbolt.DB
	snapshot *bbolt.DB
}

// Load opens the databases and returns their contents.
func (s *FileStore) Load(ctx context.Context) (_ Contents, err error) {
	defer bboltx.Recover(&err)

	s.m.Lock()
	defer s.m.Unlock()

	bboltx.Must(s.open(ctx))

	var c Contents

	bboltx.Must(s.snapshot.View(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)

		b := tx.Bucket(snapshotBucketKey)
		if b == nil {
			return nil
		}

		data := b.Get(snapshotStateKey)
		if data == nil {
			return nil
		}

		p, err := packetx.Unmarshal(data)
		bboltx.Must(err)

		c.Snapshot = &p
		c.SnapshotSeq = unmarshalSeq(b.Get(snapshotSeqKey))

		return nil
	}))

	bboltx.Must(s.log.View(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)

		b := tx.Bucket(entriesBucketKey)
		if b == nil {
			return nil
		}

		cur := b.Cursor()
		for k, v := cur.Seek(marshalSeq(c.SnapshotSeq + 1)); k != nil; k, v = cur.Next() {
			p, err := packetx.Unmarshal(v)
			bboltx.Must(err)

			c.Entries = append(c.Entries, Item{
				Seq:    unmarshalSeq(k),
				Packet: p,
			})
		}

		return nil
	}))

	return c, nil
}

// Append writes an entry to the log database.
func (s *FileStore) Append(ctx context.Context, e Item) error {
	db, err := s.db(func() *bbolt.DB { return s.log })
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)

		b := bboltx.CreateBucketIfNotExists(tx, entriesBucketKey)
		bboltx.Put(b, marshalSeq(e.Seq), packetx.Marshal(e.Packet))

		return nil
	})
}

// WriteSnapshot replaces the snapshot database's contents, then removes the
// entries it reflects from the log database.
//
// A failure between the two steps leaves entries in the log that Load()
// skips.
func (s *FileStore) WriteSnapshot(ctx context.Context, seq uint64, p marshalkit.Packet) error {
	db, err := s.db(func() *bbolt.DB { return s.snapshot })
	if err != nil {
		return err
	}

	if err := db.Update(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)

		b := bboltx.CreateBucketIfNotExists(tx, snapshotBucketKey)
		bboltx.Put(b, snapshotSeqKey, marshalSeq(seq))
		bboltx.Put(b, snapshotStateKey, packetx.Marshal(p))

		return nil
	}); err != nil {
		return err
	}

	db, err = s.db(func() *bbolt.DB { return s.log })
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) (err error) {
		defer bboltx.Recover(&err)

		if b := bboltx.Bucket(tx, entriesBucketKey); b != nil {
			bboltx.DeleteUpTo(b, marshalSeq(seq))
		}

		return nil
	})
}

// Close closes both databases.
func (s *FileStore) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	var err error

	if s.log != nil {
		err = s.log.Close()
		s.log = nil
	}

	if s.snapshot != nil {
		if e := s.snapshot.Close(); err == nil {
			err = e
		}
		s.snapshot = nil
	}

	return err
}

// open opens the databases if they are not already open. s.m must be locked.
func (s *FileStore) open(ctx context.Context) error {
	if s.log != nil {
		return nil
	}

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return err
	}

	log, err := bboltx.Open(ctx, filepath.Join(s.Dir, LogFile), s.Mode, s.Options)
	if err != nil {
		return fmt.Errorf("unable to open log: %w", err)
	}

	snapshot, err := bboltx.Open(ctx, filepath.Join(s.Dir, SnapshotFile), s.Mode, s.Options)
	if err != nil {
		log.Close()
		return fmt.Errorf("unable to open snapshot: %w", err)
	}

	s.log = log
	s.snapshot = snapshot

	return nil
}

// db returns the database returned by fn, or an error if the store is not
// open.
func (s *FileStore) db(fn func() *bbolt.DB) (*bbolt.DB, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if db := fn(); db != nil {
		return db, nil
	}

	return nil, errClosed
}

// marshalSeq marshals a sequence number to its binary representation.
func marshalSeq(n uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, n)
	return data
}

// unmarshalSeq unmarshals a sequence number from its binary representation.
func unmarshalSeq(data []byte) uint64 {
	n := len(data)

	switch n {
	case 0:
		return 0
	case 8:
		return binary.BigEndian.Uint64(data)
	default:
		panic(bboltx.PanicSentinel{
			Cause: fmt.Errorf("data is corrupt, expected 8 bytes, got %d", n),
		})
	}
}
