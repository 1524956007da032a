package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/distr1/rootfs"
	"github.com/zeebo/blake3"
	"golang.org/x/xerrors"
)

// DigestTree returns a hex-encoded BLAKE3 digest over HashEntry of every
// entry below (and including) root, visited in lexical order. Paths are fed
// relative to root (with a leading slash), so that the digest only depends on
// the tree itself, not on where it is located.
func DigestTree(root string, owner *rootfs.Owner) (string, error) {
	h := blake3.New()
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return hashEntryAs(h, path, filepath.Join("/", rel), owner)
	})
	if err != nil {
		return "", xerrors.Errorf("digest %s: %w", root, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// CopyTree copies the tree at src into dest using ShallowCopy for every entry,
// i.e. merging into directories which already exist in dest.
func CopyTree(src, dest string, owner *rootfs.Owner) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if _, err := ShallowCopy(path, filepath.Join(dest, rel), owner); err != nil {
			return xerrors.Errorf("copying %s: %w", path, err)
		}
		return nil
	})
}
