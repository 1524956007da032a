package build

import (
	"path/filepath"
	"time"

	"github.com/distr1/rootfs/internal/fileutil"
	"github.com/distr1/rootfs/internal/mount"
	"golang.org/x/xerrors"
)

// Replaced in tests, which usually cannot mount.
var (
	bindMount = mount.BindMount
	unmount   = mount.Unmount
)

// Lock acquisition for shared caches is retried lockAttempts times, starting
// with a delay of lockDelay.
var (
	lockAttempts = 20
	lockDelay    = 100 * time.Millisecond
)

// AddCacheDir registers path (within the container) as the cache directory
// name, shared across builds in c.CacheDir/name. The cache is locked for the
// lifetime of c, so that concurrent builds do not corrupt it. Registering the
// same name for the same path again is a no-op.
func (c *Ctx) AddCacheDir(path, name string) error {
	if existing, ok := c.cacheDirs[name]; ok {
		if existing == path {
			return nil
		}
		return xerrors.Errorf("cache dir %q is already registered for %s, not %s", name, existing, path)
	}

	if err := fileutil.EnsureDir(c.CacheDir, true); err != nil {
		return xerrors.Errorf("creating cache root: %w", err)
	}
	hostDir := filepath.Join(c.CacheDir, name)
	if err := fileutil.EnsureDirSafe(hostDir); err != nil {
		return err
	}

	lockPath := filepath.Join(c.CacheDir, "."+name+".lock")
	l, err := fileutil.WaitExclusive(lockPath, lockAttempts, lockDelay)
	if err != nil {
		return xerrors.Errorf("locking cache %q: %w", name, err)
	}
	c.locks = append(c.locks, l)

	if c.MountCaches {
		inRoot := filepath.Join(c.RootDir, path)
		if err := fileutil.EnsureDir(inRoot, true); err != nil {
			return xerrors.Errorf("creating cache mount point: %w", err)
		}
		if err := bindMount(hostDir, inRoot); err != nil {
			return err
		}
		c.mounts = append(c.mounts, inRoot)
	}

	if c.cacheDirs == nil {
		c.cacheDirs = make(map[string]string)
	}
	c.cacheDirs[name] = path
	return nil
}

// CacheDirs returns a copy of the registered cache directories, keyed by
// name.
func (c *Ctx) CacheDirs() map[string]string {
	res := make(map[string]string, len(c.cacheDirs))
	for k, v := range c.cacheDirs {
		res[k] = v
	}
	return res
}
