package fileutil

import (
	"os"

	"github.com/google/renameio"
)

// EnsureSymlink creates linkpath pointing to target. If linkpath already is a
// symlink pointing to target, EnsureSymlink succeeds without changes.
// Otherwise, the error from symlink(2) is returned unchanged and the existing
// entry is left alone.
func EnsureSymlink(target, linkpath string) error {
	err := os.Symlink(target, linkpath)
	if err == nil || !os.IsExist(err) {
		return err
	}
	got, rerr := os.Readlink(linkpath)
	if rerr != nil {
		return rerr
	}
	if got != target {
		return err
	}
	return nil // already points to target
}

// ForceSymlink makes linkpath point to target, replacing whatever linkpath
// currently is (unless it is a non-empty directory). The new symlink is
// created under a temporary name next to linkpath and renamed into place, so
// linkpath never disappears; an interrupted call leaves at most a stale
// temporary entry behind.
func ForceSymlink(target, linkpath string) error {
	return renameio.Symlink(target, linkpath)
}
