package mirror

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/shirou/gopsutil/v4/process"
)

// OpenFilesGuard reports a file as in use when any other process visible to
// this one holds it open. The process table is read once per cycle; files
// opened later in the cycle are not seen until the next one.
type OpenFilesGuard struct {
	list func(ctx context.Context) ([]string, error)

	mu   sync.RWMutex
	open mapset.Set[string]
}

func NewOpenFilesGuard() *OpenFilesGuard {
	return &OpenFilesGuard{list: listOpenFiles}
}

func (g *OpenFilesGuard) BeginCycle(ctx context.Context) {
	paths, err := g.list(ctx)
	if err != nil {
		// keep the previous snapshot rather than pretending nothing is open
		slog.Warn("open files snapshot", "error", err)
		return
	}

	open := mapset.NewThreadUnsafeSetWithSize[string](len(paths))
	for _, p := range paths {
		open.Add(filepath.Clean(p))
	}

	g.mu.Lock()
	g.open = open
	g.mu.Unlock()
}

func (g *OpenFilesGuard) InUse(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.open == nil {
		return false
	}
	return g.open.Contains(filepath.Clean(path))
}

func listOpenFiles(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	self := int32(os.Getpid())
	var paths []string
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		// processes owned by other users are not readable, skip them
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}
	return paths, nil
}
