package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// OSFilesystem implements Filesystem on top of the local disk.
type OSFilesystem struct{}

func (OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFilesystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (OSFilesystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// CopyFile copies src over dst, keeping the permission bits and modification
// time of src. If dst is an existing directory the file lands inside it.
func (OSFilesystem) CopyFile(src string, dst string) error {
	info, err := os.Stat(dst)
	if err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
		info, err = os.Stat(dst)
	}

	// Opening dst truncates it, which would empty src first.
	if err == nil {
		srcInfo, srcErr := os.Stat(src)
		if srcErr == nil && os.SameFile(srcInfo, info) {
			return ErrSameFile
		}
	}

	return copyRegularFile(src, dst)
}

type copiedDir struct {
	path    string
	mode    fs.FileMode
	modTime time.Time
}

// CopyTree recreates the tree rooted at src under dst. Symlinks are copied as
// links. Directory modes and times are applied once their contents are in
// place so read-only directories can still be populated. A dst inside src is
// refused since the walk would descend into its own output.
func (OSFilesystem) CopyTree(src string, dst string) error {
	if within(resolvePath(src), resolvePath(dst)) {
		return ErrNestedMirror
	}

	dirs := make([]copiedDir, 0)

	// WalkDir does not follow a symlinked root.
	if resolved, err := filepath.EvalSymlinks(src); err == nil {
		src = resolved
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o700|info.Mode().Perm()); err != nil {
				return err
			}
			dirs = append(dirs, copiedDir{path: target, mode: info.Mode().Perm(), modTime: info.ModTime()})
			return nil
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyRegularFile(path, target)
		default:
			return fmt.Errorf("%s: unsupported file type %s", path, info.Mode().Type())
		}
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].mode); err != nil {
			return err
		}
		if err := os.Chtimes(dirs[i].path, dirs[i].modTime, dirs[i].modTime); err != nil {
			return err
		}
	}

	return nil
}

func copyRegularFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
