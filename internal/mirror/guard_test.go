package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockGuard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	guard := LockGuard{}
	assert.False(t, guard.InUse(path), "free file")

	lock := flock.New(path)
	require.NoError(t, lock.Lock())
	assert.True(t, guard.InUse(path), "exclusively locked file")
	require.NoError(t, lock.Unlock())

	assert.False(t, guard.InUse(path), "released file")
}

func TestLockGuard_SharedLockIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	reader := flock.New(path, flock.SetFlag(os.O_RDONLY))
	ok, err := reader.TryRLock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, LockGuard{}.InUse(path))

	require.NoError(t, reader.Unlock())
	assert.False(t, LockGuard{}.InUse(path))
}

func TestLockGuard_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	assert.True(t, LockGuard{}.InUse(path))
	assert.NoFileExists(t, path, "the guard must not create files")
}

func TestNewGuard(t *testing.T) {
	g, err := NewGuard("")
	require.NoError(t, err)
	assert.IsType(t, LockGuard{}, g)

	g, err = NewGuard(GuardLock)
	require.NoError(t, err)
	assert.IsType(t, LockGuard{}, g)

	g, err = NewGuard(GuardOpenFiles)
	require.NoError(t, err)
	assert.IsType(t, &OpenFilesGuard{}, g)

	g, err = NewGuard(GuardNone)
	require.NoError(t, err)
	assert.False(t, g.InUse("/anything"))

	_, err = NewGuard("psychic")
	assert.ErrorContains(t, err, "psychic")
}

func TestOpenFilesGuard(t *testing.T) {
	snapshot := []string{"/data/source/a.txt", "/data/replica/sub/../b.txt"}
	var listErr error

	g := &OpenFilesGuard{list: func(context.Context) ([]string, error) {
		return snapshot, listErr
	}}

	assert.False(t, g.InUse("/data/source/a.txt"), "no snapshot yet")

	g.BeginCycle(context.Background())
	assert.True(t, g.InUse("/data/source/a.txt"))
	assert.True(t, g.InUse("/data/replica/b.txt"))
	assert.True(t, g.InUse("/data/source/./a.txt"))
	assert.False(t, g.InUse("/data/source/c.txt"))

	// a failed refresh keeps the previous snapshot
	snapshot, listErr = nil, errors.New("permission denied")
	g.BeginCycle(context.Background())
	assert.True(t, g.InUse("/data/source/a.txt"))

	snapshot, listErr = []string{"/data/source/c.txt"}, nil
	g.BeginCycle(context.Background())
	assert.False(t, g.InUse("/data/source/a.txt"))
	assert.True(t, g.InUse("/data/source/c.txt"))
}

func TestEngine_RefreshesCycleGuard(t *testing.T) {
	calls := 0
	guard := &OpenFilesGuard{list: func(context.Context) ([]string, error) {
		calls++
		return nil, nil
	}}

	env := newMemEnv(t, Options{Guard: guard})
	env.cycle(t)
	env.cycle(t)

	assert.Equal(t, 2, calls)
}

func TestEngine_OpenFilesGuardDefersFile(t *testing.T) {
	env := newMemEnv(t, Options{})
	srcPath := filepath.Join(env.source, "a.txt")
	writeFile(t, env.fs, srcPath, "x", t1)

	guard := &OpenFilesGuard{list: func(context.Context) ([]string, error) {
		return []string{srcPath}, nil
	}}
	env.build(t, Options{Guard: guard})

	report := env.cycle(t)
	assert.Equal(t, []string{"a.txt"}, report.Deferred())
	assert.Empty(t, env.events.Lines())
}
