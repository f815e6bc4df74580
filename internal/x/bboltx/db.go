package bboltx

import (
	"context"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// Open creates and opens a database at the given path.
//
// If mode is zero, 0600 is used. The time spent waiting for the file lock is
// bounded by the deadline of ctx, if it has one.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if mode == 0 {
		mode = 0600
	}

	if ctx.Err() != nil {
		// A non-positive timeout in the bbolt options means "use the default",
		// so an expired context has to be caught here.
		return nil, ctx.Err()
	}

	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		clone := bbolt.Options{}
		if opts != nil {
			clone = *opts
		} else if bbolt.DefaultOptions != nil {
			clone = *bbolt.DefaultOptions
		}

		if clone.Timeout == 0 || clone.Timeout > timeout {
			clone.Timeout = timeout
		}

		opts = &clone
	}

	db, err := bbolt.Open(path, mode, opts)
	if err == bbolt.ErrTimeout {
		err = context.DeadlineExceeded
	}

	return db, err
}
