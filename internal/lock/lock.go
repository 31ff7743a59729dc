// Package lock guards an install root against concurrent jrefetch runs.
package lock

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute

	// FileName is the lock file created inside the locked directory.
	FileName = "jrefetch.lock"
)

// ErrLockExists means another jrefetch process holds the lock.
const ErrLockExists = jujuerrors.ConstError("install lock exists: another jrefetch run may be in progress")

// Lock is an exclusive lock on a directory.
type Lock struct {
	path  string
	owner string
	file  *os.File
}

// AcquireLock attempts to acquire an exclusive lock on dir, creating dir if
// needed. Uses O_CREATE|O_EXCL for atomic lock creation. A lock older than
// StaleLockThreshold is taken over once.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, FileName)
	file, err := create(lockPath)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, ErrLockExists
		}
		os.Remove(lockPath)
		if file, err = create(lockPath); err != nil {
			return nil, ErrLockExists
		}
	}

	l := &Lock{path: lockPath, owner: uuid.NewString(), file: file}
	lockData := fmt.Sprintf("pid=%d\nowner=%s\ntimestamp=%s\n",
		os.Getpid(), l.owner, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. A lock file that has been taken over by
// another process after going stale is left alone.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	defer func() { l.path = "" }()

	owner, err := readOwner(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock file: %w", err)
	}
	if owner != l.owner {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

func readOwner(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "owner="); ok {
			return v, nil
		}
	}
	return "", scanner.Err()
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}
