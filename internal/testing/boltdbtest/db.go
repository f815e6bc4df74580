package boltdbtest

import (
	"os"
	"sync"
)

// TempDir creates a temporary directory to hold BoltDB databases.
//
// The returned function removes the directory and everything in it.
func TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "actd-*")
	if err != nil {
		panic(err)
	}

	var once sync.Once
	return dir, func() {
		once.Do(func() {
			os.RemoveAll(dir)
		})
	}
}
