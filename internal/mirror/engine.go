package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// CreateMode controls what the additions pass writes for a file that is
// missing from the replica.
type CreateMode string

const (
	// CreateCopy copies the full content and modification time right away.
	CreateCopy CreateMode = "copy"

	// CreatePlaceholder creates an empty file stamped with the Unix epoch.
	// The content arrives one cycle later through the staleness rule.
	CreatePlaceholder CreateMode = "placeholder"
)

var placeholderTime = time.Unix(0, 0)

// ParseCreateMode validates a create mode name. The empty string selects
// CreateCopy.
func ParseCreateMode(s string) (CreateMode, error) {
	switch CreateMode(s) {
	case "", CreateCopy:
		return CreateCopy, nil
	case CreatePlaceholder:
		return CreatePlaceholder, nil
	default:
		return "", fmt.Errorf("unknown create mode %q", s)
	}
}

// Options configures an Engine. Only SourceRoot and ReplicaRoot are required.
type Options struct {
	SourceRoot  string
	ReplicaRoot string

	// Fs is the filesystem both trees live on. Defaults to the OS filesystem.
	Fs afero.Fs

	// Guard defaults to LockGuard on the OS filesystem and NopGuard otherwise.
	Guard UsageGuard

	// Events defaults to discarding all events.
	Events EventLogger

	CreateMode CreateMode

	// Serial runs the deletions pass and then the additions pass instead of
	// running both at the same time.
	Serial bool

	Ignore  []string
	Include []string

	// ModTimeWindow is how much newer the source must be before a replica
	// file counts as stale. Zero means any strictly newer source.
	ModTimeWindow time.Duration

	Clock clockwork.Clock
}

// Engine reconciles a replica tree against a source tree.
type Engine struct {
	fs          afero.Fs
	sourceRoot  string
	replicaRoot string
	guard       UsageGuard
	events      EventLogger
	createMode  CreateMode
	serial      bool
	ignore      []string
	include     []string
	mtimeWindow time.Duration
	clock       clockwork.Clock
	cycles      atomic.Uint64
}

// NewEngine validates opts and fills in the defaults. The ignore file is not
// read here but at the start of every cycle.
func NewEngine(opts Options) (*Engine, error) {
	if opts.SourceRoot == "" || opts.ReplicaRoot == "" {
		return nil, errors.New("source and replica roots are required")
	}
	if opts.ModTimeWindow < 0 {
		return nil, errors.New("mod time window cannot be negative")
	}

	createMode, err := ParseCreateMode(string(opts.CreateMode))
	if err != nil {
		return nil, err
	}

	// fail early on bad globs, the filter is rebuilt every cycle
	if _, err := NewFilter(opts.Ignore, opts.Include); err != nil {
		return nil, err
	}

	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	guard := opts.Guard
	if guard == nil {
		if _, ok := fsys.(*afero.OsFs); ok {
			guard = LockGuard{}
		} else {
			guard = NopGuard{}
		}
	}

	events := opts.Events
	if events == nil {
		events = discardEvents{}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine{
		fs:          fsys,
		sourceRoot:  filepath.Clean(opts.SourceRoot),
		replicaRoot: filepath.Clean(opts.ReplicaRoot),
		guard:       guard,
		events:      events,
		createMode:  createMode,
		serial:      opts.Serial,
		ignore:      opts.Ignore,
		include:     opts.Include,
		mtimeWindow: opts.ModTimeWindow,
		clock:       clock,
	}, nil
}

func (e *Engine) SourceRoot() string  { return e.sourceRoot }
func (e *Engine) ReplicaRoot() string { return e.replicaRoot }

// RunCycle runs both passes once and returns when both are done. Failures
// are reported in the CycleReport, never returned; a cycle always visits
// every entry it can reach.
func (e *Engine) RunCycle(ctx context.Context) *CycleReport {
	report := &CycleReport{
		ID:        e.cycles.Add(1),
		Started:   e.clock.Now(),
		Additions: newPassReport(PassAdditions),
		Deletions: newPassReport(PassDeletions),
	}

	filter, err := LoadFilter(e.fs, e.sourceRoot, e.ignore, e.include)
	if err != nil {
		// include globs were validated in NewEngine, so this is an ignore
		// file problem; run unfiltered rather than skip the cycle
		slog.Warn("mirror filter", "error", err)
		filter = nil
	}

	if g, ok := e.guard.(cycleGuard); ok {
		g.BeginCycle(ctx)
	}

	if e.serial {
		e.syncDeletions(filter, "", report.Deletions)
		e.syncAdditions(filter, "", report.Additions)
	} else {
		var eg errgroup.Group
		eg.Go(func() error {
			e.syncAdditions(filter, "", report.Additions)
			return nil
		})
		eg.Go(func() error {
			e.syncDeletions(filter, "", report.Deletions)
			return nil
		})
		_ = eg.Wait()
	}

	report.Took = e.clock.Since(report.Started)
	return report
}

func (e *Engine) sourcePath(relPath string) string {
	return filepath.Join(e.sourceRoot, relPath)
}

func (e *Engine) replicaPath(relPath string) string {
	return filepath.Join(e.replicaRoot, relPath)
}

func (e *Engine) emit(rep *PassReport, verb Verb, relPath string) {
	ev := Event{Verb: verb, RelPath: relPath}
	rep.Events = append(rep.Events, ev)
	if err := e.events.LogEvent(ev.String()); err != nil {
		slog.Error("event log write", "event", ev.String(), "error", err)
	}
}

// level is one directory listing split by kind. others holds everything
// that is neither a directory nor a regular file (symlinks, devices,
// sockets). Such entries are never mirrored from the source and are pruned
// from the replica.
type level struct {
	dirs   []os.FileInfo
	files  []os.FileInfo
	others []os.FileInfo
}

func (e *Engine) readLevel(dir string) (level, error) {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return level{}, err
	}

	var lvl level
	for _, info := range infos {
		switch {
		case info.IsDir():
			lvl.dirs = append(lvl.dirs, info)
		case info.Mode().IsRegular():
			lvl.files = append(lvl.files, info)
		default:
			lvl.others = append(lvl.others, info)
		}
	}
	return lvl, nil
}

// lstat does not follow a final symlink when the filesystem supports it.
func (e *Engine) lstat(path string) (os.FileInfo, error) {
	if l, ok := e.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return e.fs.Stat(path)
}

// isStale applies the staleness rule.
func (e *Engine) isStale(src, replica os.FileInfo) bool {
	return src.ModTime().Sub(replica.ModTime()) > e.mtimeWindow
}

// copyFile replaces dstPath with the content of srcPath and stamps it with
// modTime. The content is written to a temp file next to dstPath and renamed
// into place, so a failed copy never leaves a truncated replica file.
func (e *Engine) copyFile(srcPath, dstPath string, modTime time.Time) (int64, error) {
	src, err := e.fs.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	tmp, err := afero.TempFile(e.fs, filepath.Dir(dstPath), tempPattern)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			e.fs.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		return n, fmt.Errorf("copy content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := e.fs.Chmod(tmpPath, filePerm); err != nil {
		return n, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := e.fs.Chtimes(tmpPath, modTime, modTime); err != nil {
		return n, fmt.Errorf("set mod time: %w", err)
	}
	if err := e.fs.Rename(tmpPath, dstPath); err != nil {
		return n, fmt.Errorf("replace replica file: %w", err)
	}

	success = true
	return n, nil
}

func (e *Engine) createPlaceholder(path string) error {
	f, err := e.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return e.fs.Chtimes(path, placeholderTime, placeholderTime)
}
