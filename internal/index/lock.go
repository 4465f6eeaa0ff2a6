package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Lock is an exclusive, advisory lock guarding index rebuilds.
type Lock struct {
	file *os.File
}

// AcquireLock takes the rebuild lock next to dbPath without blocking.
// It returns ErrIndexLocked when another process holds it.
func AcquireLock(dbPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	lockFile, err := os.OpenFile(dbPath+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}

	if err := tryLock(lockFile); err != nil {
		lockFile.Close()
		if errors.Is(err, ErrIndexLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}

	return &Lock{file: lockFile}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
