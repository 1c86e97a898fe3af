//go:build windows

package storage

import (
	"os"
	"path/filepath"
	"strconv"

	"ckg/internal/kgerrors"
)

const lockFile = "store.lock"

// Lock represents the exclusive lock on the store.
// Windows has no flock; O_CREATE|O_EXCL on the lock file approximates
// the single-open discipline.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock attempts to acquire the exclusive store lock.
func AcquireLock(ckgDir string) (*Lock, error) {
	if err := os.MkdirAll(ckgDir, 0755); err != nil {
		return nil, kgerrors.DBError("creating .ckg directory", err)
	}

	path := filepath.Join(ckgDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, kgerrors.DBError("store is already open", nil)
		}
		return nil, kgerrors.DBError("opening lock file", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, kgerrors.DBError("writing PID to lock file", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}

	_ = l.file.Close()
	l.file = nil
	_ = os.Remove(l.path)
}
