// Package env captures the default locations used while materializing a
// container root file system. Each can be overridden through an environment
// variable.
package env

import (
	"os"
	"strings"
)

var (
	// RootDir is where the container root file system is assembled, as seen
	// by the builder process ($ROOTFS_ROOT).
	RootDir = getenv("ROOTFS_ROOT", "/rootfs/root")

	// ContainerDir holds metadata about the container being built, e.g.
	// package lists ($ROOTFS_CONTAINER).
	ContainerDir = getenv("ROOTFS_CONTAINER", "/rootfs/container")

	// WorkDir is the project directory. Archive locations starting with a dot
	// are resolved relative to it ($ROOTFS_WORK).
	WorkDir = getenv("ROOTFS_WORK", "/work")

	// CacheDir is the host directory below which shared caches (downloads,
	// package manager caches) live ($ROOTFS_CACHE).
	CacheDir = getenv("ROOTFS_CACHE", "/rootfs/cache")

	// TarCommand is the archive tool invocation prefix ($ROOTFS_TAR, split on
	// whitespace).
	TarCommand = strings.Fields(getenv("ROOTFS_TAR", "/rootfs/bin/busybox tar"))
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
