package mirror

import (
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
)

// syncDeletions removes every replica entry below relPath that has no source
// counterpart of the same kind. Directories are handled before files, depth
// first, walking the replica side.
func (e *Engine) syncDeletions(filter *Filter, relPath string, rep *PassReport) {
	replicaLvl, err := e.readLevel(e.replicaPath(relPath))
	if err != nil {
		rep.fail(OpList, relPath, err)
		return
	}

	// Never delete on a listing we could not read. If the source directory
	// vanished mid-cycle its parent level removes the replica next cycle.
	srcDirs, srcFiles, err := e.sourceNames(relPath)
	if err != nil {
		rep.fail(OpList, relPath, err)
		return
	}

	for _, dir := range replicaLvl.dirs {
		childRel := filepath.Join(relPath, dir.Name())
		if filter.Skip(childRel, true) {
			continue
		}

		if srcDirs.Contains(dir.Name()) {
			e.syncDeletions(filter, childRel, rep)
			continue
		}

		if err := e.fs.RemoveAll(e.replicaPath(childRel)); err != nil {
			rep.fail(OpRemoveAll, childRel, err)
			continue
		}
		e.emit(rep, VerbDeleteFolder, childRel)
	}

	// symlinks and special files never match a source entry
	for _, other := range replicaLvl.others {
		childRel := filepath.Join(relPath, other.Name())
		if filter.Skip(childRel, false) {
			continue
		}

		if err := e.fs.Remove(e.replicaPath(childRel)); err != nil {
			rep.fail(OpRemove, childRel, err)
			continue
		}
		e.emit(rep, VerbDeleted, childRel)
	}

	for _, file := range replicaLvl.files {
		childRel := filepath.Join(relPath, file.Name())
		if filter.Skip(childRel, false) || srcFiles.Contains(file.Name()) {
			continue
		}

		if err := e.fs.Remove(e.replicaPath(childRel)); err != nil {
			rep.fail(OpRemove, childRel, err)
			continue
		}
		e.emit(rep, VerbDeleted, childRel)
	}
}

func (e *Engine) sourceNames(relPath string) (dirs, files mapset.Set[string], err error) {
	lvl, err := e.readLevel(e.sourcePath(relPath))
	if err != nil {
		return nil, nil, err
	}

	dirs = mapset.NewThreadUnsafeSetWithSize[string](len(lvl.dirs))
	for _, d := range lvl.dirs {
		dirs.Add(d.Name())
	}
	files = mapset.NewThreadUnsafeSetWithSize[string](len(lvl.files))
	for _, f := range lvl.files {
		files.Add(f.Name())
	}
	return dirs, files, nil
}
