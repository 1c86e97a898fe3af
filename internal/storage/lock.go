//go:build !windows

package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"ckg/internal/kgerrors"
)

const lockFile = "store.lock"

// Lock represents the exclusive lock on the store. The engine admits a
// single open connection per store; the lock enforces that across
// processes as well as within one.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock attempts to acquire the exclusive store lock.
// A held lock is a fatal DB_ERROR: callers must close the other
// connection first, not retry in a loop.
func AcquireLock(ckgDir string) (*Lock, error) {
	if err := os.MkdirAll(ckgDir, 0755); err != nil {
		return nil, kgerrors.DBError("creating .ckg directory", err)
	}

	path := filepath.Join(ckgDir, lockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, kgerrors.DBError("opening lock file", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()

		if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
			pid := strings.TrimSpace(string(content))
			return nil, kgerrors.DBError("store is already open (PID "+pid+")", nil)
		}
		return nil, kgerrors.DBError("store is already open", nil)
	}

	if err := file.Truncate(0); err != nil {
		releaseFlock(file)
		return nil, kgerrors.DBError("truncating lock file", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		releaseFlock(file)
		return nil, kgerrors.DBError("seeking lock file", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		releaseFlock(file)
		return nil, kgerrors.DBError("writing PID to lock file", err)
	}

	return &Lock{path: path, file: file}, nil
}

func releaseFlock(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}

	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
	_ = os.Remove(l.path)
}
