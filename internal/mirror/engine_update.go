package mirror

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// syncAdditions makes every source entry below relPath present and current
// in the replica. Directories are handled before files, depth first.
func (e *Engine) syncAdditions(filter *Filter, relPath string, rep *PassReport) {
	lvl, err := e.readLevel(e.sourcePath(relPath))
	if err != nil {
		rep.fail(OpList, relPath, err)
		return
	}

	for _, other := range lvl.others {
		slog.Debug("mirror skip special file", "path", filepath.Join(relPath, other.Name()), "mode", other.Mode().String())
	}

	for _, dir := range lvl.dirs {
		childRel := filepath.Join(relPath, dir.Name())
		if filter.Skip(childRel, true) {
			continue
		}

		if !e.ensureReplicaDir(childRel, rep) {
			continue
		}
		e.syncAdditions(filter, childRel, rep)
	}

	for _, file := range lvl.files {
		childRel := filepath.Join(relPath, file.Name())
		if filter.Skip(childRel, false) {
			continue
		}
		e.syncFile(childRel, file, rep)
	}
}

// ensureReplicaDir creates the replica directory for relPath if needed and
// reports whether the walk can descend into it. A symlink in its place is a
// kind mismatch, never followed out of the replica.
func (e *Engine) ensureReplicaDir(relPath string, rep *PassReport) bool {
	replicaDir := e.replicaPath(relPath)

	info, err := e.lstat(replicaDir)
	switch {
	case err == nil && info.IsDir():
		return true
	case err == nil:
		rep.fail(OpMkdir, relPath, ErrKindMismatch)
		return false
	case !errors.Is(err, fs.ErrNotExist):
		rep.fail(OpStat, relPath, err)
		return false
	}

	if err := e.fs.Mkdir(replicaDir, dirPerm); err != nil {
		rep.fail(OpMkdir, relPath, err)
		return false
	}
	e.emit(rep, VerbCreateFolder, relPath)
	return true
}

func (e *Engine) syncFile(relPath string, src os.FileInfo, rep *PassReport) {
	srcPath := e.sourcePath(relPath)
	replicaPath := e.replicaPath(relPath)

	replica, err := e.lstat(replicaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e.createFile(relPath, src, rep)
		return
	case err != nil:
		rep.fail(OpStat, relPath, err)
		return
	case !replica.Mode().IsRegular():
		rep.fail(OpCopy, relPath, ErrKindMismatch)
		return
	}

	if e.guard.InUse(replicaPath) || e.guard.InUse(srcPath) {
		rep.deferPath(relPath)
		return
	}

	if !e.isStale(src, replica) {
		return
	}

	n, err := e.copyFile(srcPath, replicaPath, src.ModTime())
	if err != nil {
		rep.fail(OpCopy, relPath, err)
		return
	}
	rep.BytesCopied += n
	e.emit(rep, VerbCopied, relPath)
}

func (e *Engine) createFile(relPath string, src os.FileInfo, rep *PassReport) {
	replicaPath := e.replicaPath(relPath)

	if e.createMode == CreatePlaceholder {
		if err := e.createPlaceholder(replicaPath); err != nil {
			rep.fail(OpCreate, relPath, err)
			return
		}
		e.emit(rep, VerbCreated, relPath)
		return
	}

	// a file still being written would be copied half done
	if e.guard.InUse(e.sourcePath(relPath)) {
		rep.deferPath(relPath)
		return
	}

	n, err := e.copyFile(e.sourcePath(relPath), replicaPath, src.ModTime())
	if err != nil {
		rep.fail(OpCreate, relPath, err)
		return
	}
	rep.BytesCopied += n
	e.emit(rep, VerbCreated, relPath)
}
