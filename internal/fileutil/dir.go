package fileutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// defaultDirMode is applied explicitly after mkdir(2) so that the umask does
// not matter.
const defaultDirMode = 0755

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// EnsureDir creates path with mode 0755 unless it already is a directory. If
// recursive is true, missing parents are created the same way first.
func EnsureDir(path string, recursive bool) error {
	if isDir(path) {
		return nil
	}
	if recursive {
		if parent := filepath.Dir(path); parent != path {
			if err := EnsureDir(parent, true); err != nil {
				return err
			}
		}
	}
	return CreateDirMode(path, defaultDirMode)
}

// CreateDirMode creates path (non-recursively) and sets its permission bits
// to mode. It is a no-op if path already is a directory.
func CreateDirMode(path string, mode os.FileMode) error {
	if isDir(path) {
		return nil
	}
	if err := os.Mkdir(path, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

// EnsureDirSafe is a stricter EnsureDir for directories which must never be a
// symlink (e.g. cache directories shared across builds). It refuses symlinks
// and non-directories with a message telling the user how to fix the
// situation.
func EnsureDirSafe(dir string) error {
	fi, err := os.Lstat(dir)
	switch {
	case err == nil && fi.Mode()&os.ModeSymlink != 0:
		return fmt.Errorf("the %q dir can't be a symlink. Please run `unlink %s`", dir, dir)

	case err == nil && fi.IsDir():
		return nil

	case err == nil:
		return fmt.Errorf("%q must be a directory. Please run `unlink %s`", dir, dir)

	case os.IsNotExist(err):
		if err := EnsureDir(dir, false); err != nil {
			return fmt.Errorf("can't create %q: %v", dir, err)
		}
		return nil
	}
	return fmt.Errorf("can't stat %q: %v", dir, err)
}

// ReadVisibleEntries returns the paths of all entries in dir whose name does
// not start with a dot, sorted by name.
func ReadVisibleEntries(dir string) ([]string, error) {
	fis, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, fi := range fis {
		if strings.HasPrefix(fi.Name(), ".") {
			continue
		}
		res = append(res, filepath.Join(dir, fi.Name()))
	}
	return res, nil
}
