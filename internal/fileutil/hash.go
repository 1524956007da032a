package fileutil

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/distr1/rootfs"
)

// hashChunkSize is the size of the chunks in which file contents are fed into
// the digest.
const hashChunkSize = 8 * 1024

// HashEntry feeds the identity of the file system entry at path into w
// (typically a hash.Hash). The entry is not followed if it is a symlink.
//
// The byte sequence written is:
//
//	path \0 mode:<octal st_mode> \0 uid:<uid> \0 gid:<gid> \0 [target | content]
//
// owner, if non-nil, replaces the uid and gid reported by lstat(2).
// Timestamps are deliberately not part of the sequence.
func HashEntry(path string, w io.Writer, owner *rootfs.Owner) error {
	return hashEntryAs(w, path, path, owner)
}

// hashEntryAs is like HashEntry, but feeds name instead of path.
func hashEntryAs(w io.Writer, path, name string, owner *rootfs.Owner) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("%s: no stat_t available", path)
	}
	uid, gid := owner.Resolve(int(st.Uid), int(st.Gid))
	if _, err := fmt.Fprintf(w, "%s\x00mode:%o\x00uid:%d\x00gid:%d\x00", name, st.Mode, uid, gid); err != nil {
		return err
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, target)
		return err

	case fi.Mode().IsRegular():
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		var chunk [hashChunkSize]byte
		for {
			n, err := f.Read(chunk[:])
			if n > 0 {
				if _, err := w.Write(chunk[:n]); err != nil {
					return err
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	// directories (and other types) contribute only their metadata
	return nil
}
