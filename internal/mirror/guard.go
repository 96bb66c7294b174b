package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

const (
	GuardLock      = "lock"
	GuardOpenFiles = "open-files"
	GuardNone      = "none"
)

// UsageGuard reports whether a file is currently open by someone else. It is
// a heuristic: nothing stops the file from being opened right after the
// check.
type UsageGuard interface {
	InUse(path string) bool
}

// cycleGuard is implemented by guards that refresh their view of the system
// once per cycle.
type cycleGuard interface {
	BeginCycle(ctx context.Context)
}

// NewGuard returns the guard registered under name.
func NewGuard(name string) (UsageGuard, error) {
	switch name {
	case GuardLock, "":
		return LockGuard{}, nil
	case GuardOpenFiles:
		return NewOpenFilesGuard(), nil
	case GuardNone:
		return NopGuard{}, nil
	default:
		return nil, fmt.Errorf("unknown usage guard %q", name)
	}
}

// LockGuard opens the file read-only and tries to take an exclusive lock on
// it without blocking, so any other lock holder, shared or exclusive, makes
// the file count as in use. The lock and the handle are released before
// InUse returns.
type LockGuard struct{}

func (LockGuard) InUse(path string) bool {
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))

	locked, err := lock.TryLock()
	if err != nil || !locked {
		return true
	}

	if err := lock.Unlock(); err != nil {
		slog.Debug("usage guard unlock", "path", path, "error", err)
	}
	return false
}

// NopGuard never reports a file as in use.
type NopGuard struct{}

func (NopGuard) InUse(string) bool { return false }
