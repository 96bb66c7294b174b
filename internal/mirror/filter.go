package mirror

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

const (
	// IgnoreFileName is read from the source root every cycle.
	IgnoreFileName = ".foldersyncignore"

	tempPrefix  = ".foldersync-"
	tempSuffix  = ".tmp"
	tempPattern = tempPrefix + "*" + tempSuffix
)

// Filter decides which relative paths the passes manage. A skipped path is
// never created, copied or deleted.
type Filter struct {
	ignore  *gitignore.GitIgnore
	include []string
}

// NewFilter compiles gitignore-style ignore lines and doublestar include
// globs. Include globs only apply to files; with none configured every file
// is included.
func NewFilter(ignoreLines []string, include []string) (*Filter, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}

	var ignore *gitignore.GitIgnore
	if len(ignoreLines) > 0 {
		ignore = gitignore.CompileIgnoreLines(ignoreLines...)
	}

	return &Filter{ignore: ignore, include: include}, nil
}

// LoadFilter builds a Filter from the configured lines plus the ignore file
// at the source root, if there is one.
func LoadFilter(fsys afero.Fs, sourceRoot string, ignoreLines []string, include []string) (*Filter, error) {
	lines := append([]string(nil), ignoreLines...)

	ignorePath := filepath.Join(sourceRoot, IgnoreFileName)
	data, err := afero.ReadFile(fsys, ignorePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		slog.Warn("read ignore file", "path", ignorePath, "error", err)
	default:
		lines = append(lines, parseIgnoreLines(data)...)
	}

	return NewFilter(lines, include)
}

func parseIgnoreLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Skip reports whether relPath is outside the set of managed entries.
func (f *Filter) Skip(relPath string, isDir bool) bool {
	if !isDir && isTempName(filepath.Base(relPath)) {
		return true
	}
	if f == nil {
		return false
	}

	slashPath := filepath.ToSlash(relPath)
	if f.ignore != nil {
		match := slashPath
		if isDir {
			// so that "build/" only matches directories
			match += "/"
		}
		if f.ignore.MatchesPath(match) {
			return true
		}
	}

	if isDir || len(f.include) == 0 {
		return false
	}
	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return false
		}
	}
	return true
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}
