package backup

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Filesystem is the narrow set of primitives the executor needs.
type Filesystem interface {
	Exists(path string) bool
	IsDir(path string) bool
	RemoveAll(path string) error
	CopyTree(src string, dst string) error
	CopyFile(src string, dst string) error
}

type Executor struct {
	FS Filesystem
}

func NewExecutor(fs Filesystem) *Executor {
	return &Executor{FS: fs}
}

// Run backs up source to destination. Directories are mirrored: an existing
// destination tree is removed before the copy. Files are copied over the
// destination.
func (e *Executor) Run(source string, destination string, logger *logrus.Entry) error {
	if !e.FS.Exists(source) {
		return &SourceMissingError{Source: source, Destination: destination}
	}

	logger.Infof("backing up %s to %s", source, destination)

	if e.FS.IsDir(source) {
		logger.Debugf("%s is a directory", source)

		// Removing or walking an overlapping destination would destroy the
		// source.
		if overlaps(source, destination) {
			return &CopyError{Op: "copy tree", Source: source, Destination: destination, Err: ErrNestedMirror}
		}

		if e.FS.Exists(destination) {
			logger.Debugf("destination %s exists, removing", destination)
			if err := e.FS.RemoveAll(destination); err != nil {
				return &CopyError{Op: "remove", Source: source, Destination: destination, Err: err}
			}
			logger.Debugf("destination %s removed", destination)
		}

		logger.Debugf("copying directory %s to %s", source, destination)
		if err := e.FS.CopyTree(source, destination); err != nil {
			return &CopyError{Op: "copy tree", Source: source, Destination: destination, Err: err}
		}
	} else {
		logger.Debugf("copying file %s to %s", source, destination)
		if err := e.FS.CopyFile(source, destination); err != nil {
			return &CopyError{Op: "copy file", Source: source, Destination: destination, Err: err}
		}
	}

	logger.Infof("backup of %s to %s done", source, destination)

	return nil
}

// resolvePath makes path absolute and resolves symlinks in the longest prefix
// of it that exists.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	missing := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, missing)
		}
		if dir == filepath.Dir(dir) {
			return abs
		}
		missing = filepath.Join(filepath.Base(dir), missing)
	}
}

// within reports whether child is parent or lies below it.
func within(parent string, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func overlaps(a string, b string) bool {
	a, b = resolvePath(a), resolvePath(b)
	return within(a, b) || within(b, a)
}
