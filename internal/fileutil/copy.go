package fileutil

import (
	"io"
	"log"
	"os"
	"syscall"

	"github.com/distr1/rootfs"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// copyBufSize is the size of the fixed buffer Copy streams file contents
// through.
const copyBufSize = 32 * 1024

// modeBits returns the permission bits of m including setuid, setgid and
// sticky, which os.FileMode.Perm drops.
func modeBits(m os.FileMode) os.FileMode {
	return m & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)
}

// Copy copies the contents of the regular file src into a newly created (or
// truncated) dest, then applies the permission bits of src to dest.
func Copy(src, dest string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return xerrors.Errorf("copy %s: %w", src, err)
	}
	if !fi.Mode().IsRegular() {
		return xerrors.Errorf("copy %s: the source path is not an existing regular file", src)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	var buf [copyBufSize]byte
	for {
		n, err := in.Read(buf[:])
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if xerrors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dest, modeBits(fi.Mode()))
}

// SetOwnerGroup changes the owner of path without following symlinks.
// Failure is logged and otherwise ignored: unprivileged builds are typically
// not allowed to chown.
func SetOwnerGroup(path string, uid, gid int) {
	if err := unix.Lchown(path, uid, gid); err != nil {
		log.Printf("WARNING: can't chown %s: %v", path, err)
	}
}

// ShallowCopy copies the single file system entry src to dest, without
// descending into directories. It reports whether src was a leaf (i.e. not a
// directory).
//
// Directories are merged: an existing dest keeps its permissions and
// ownership, so that overlapping trees from several steps (and mount points
// such as /proc) are left alone. Files and symlinks are always replaced.
//
// owner, if non-nil, replaces the owner of src for the new entry.
func ShallowCopy(src, dest string, owner *rootfs.Owner) (leaf bool, _ error) {
	fi, err := os.Lstat(src)
	if err != nil {
		return false, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false, xerrors.Errorf("%s: no stat_t available", src)
	}
	uid, gid := owner.Resolve(int(st.Uid), int(st.Gid))

	switch {
	case fi.IsDir():
		if _, err := os.Lstat(dest); err == nil {
			return false, nil // merge into existing directory
		} else if !os.IsNotExist(err) {
			return false, err
		}
		if err := os.Mkdir(dest, 0700); err != nil {
			return false, err
		}
		if err := os.Chmod(dest, modeBits(fi.Mode())); err != nil {
			return false, err
		}
		SetOwnerGroup(dest, uid, gid)
		return false, nil

	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return false, err
		}
		if err := ForceSymlink(target, dest); err != nil {
			return false, err
		}
		SetOwnerGroup(dest, uid, gid)
		return true, nil

	default:
		if err := Copy(src, dest); err != nil {
			return false, err
		}
		SetOwnerGroup(dest, uid, gid)
		return true, nil
	}
}
