package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/openmined/foldersync/internal/utils"
)

var ErrAlreadyRunning = errors.New("another foldersync instance is writing to this log file")

// instanceLock keeps two agents from sharing a log file.
type instanceLock struct {
	flock *flock.Flock
}

func newInstanceLock(path string) *instanceLock {
	return &instanceLock{flock: flock.New(path)}
}

func (l *instanceLock) Lock() error {
	if err := utils.EnsureParent(l.flock.Path()); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", l.flock.Path(), err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to take instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (%s)", ErrAlreadyRunning, l.flock.Path())
	}

	return nil
}

func (l *instanceLock) Unlock() error {
	// if this process hasn't taken the lock, then don't delete the lock file
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}

	return os.Remove(l.flock.Path())
}
