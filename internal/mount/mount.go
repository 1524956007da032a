// Package mount wraps the bind mount primitives needed to stage archive
// extraction.
package mount

import (
	"bufio"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// BindMount makes the directory src (and any mounts below it) visible at dest.
func BindMount(src, dest string) error {
	if err := unix.Mount(src, dest, "none", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return xerrors.Errorf("bind mount %s %s: %w", src, dest, err)
	}
	return nil
}

// Unmount unmounts target. It is not an error if nothing is mounted on target
// (anymore), so Unmount can safely be called from cleanup paths. If target is
// busy, the mount is detached lazily.
func Unmount(target string) error {
	err := unix.Unmount(target, 0)
	switch err {
	case nil:
		return nil
	case unix.EINVAL, unix.ENOENT:
		return nil // not a mount point
	case unix.EBUSY:
		log.Printf("unmount %s: %v, detaching lazily", target, err)
		if err := unix.Unmount(target, unix.MNT_DETACH); err != nil && err != unix.EINVAL {
			return xerrors.Errorf("unmount %s: %w", target, err)
		}
		return nil
	}
	return xerrors.Errorf("unmount %s: %w", target, err)
}

// Mountpoint reports whether fn is a mount point according to
// /proc/self/mountinfo.
func Mountpoint(fn string) (bool, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return false, err
	}
	defer f.Close()
	mountpoints, err := parseMountinfo(f)
	if err != nil {
		return false, err
	}
	for _, mp := range mountpoints {
		if mp == fn {
			return true, nil
		}
	}
	return false, nil
}

// parseMountinfo returns the mount point field (the fifth) of each line in
// the mountinfo(5) formatted r.
func parseMountinfo(r io.Reader) ([]string, error) {
	var mountpoints []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), " ")
		if len(parts) < 5 {
			continue
		}
		mountpoints = append(mountpoints, unescapeOctal(parts[4]))
	}
	return mountpoints, scanner.Err()
}

// unescapeOctal decodes the \NNN escapes the kernel uses for space, tab,
// newline and backslash in mountinfo paths.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
