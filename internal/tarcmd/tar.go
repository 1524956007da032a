package tarcmd

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/config"
	"github.com/distr1/rootfs/internal/fileutil"
	"github.com/distr1/rootfs/internal/mount"
	"github.com/distr1/rootfs/internal/oninterrupt"
	"github.com/distr1/rootfs/internal/trace"
	"golang.org/x/xerrors"
)

// Replaced in tests, which usually cannot mount.
var (
	bindMount = mount.BindMount
	unmount   = mount.Unmount
)

// Extract materializes t.Subdir of the archive t.URL into t.Path within the
// container.
//
// Extracting a subdirectory uses a staging directory named after the archive,
// with t.Path bind-mounted at the position of t.Subdir. tar then only extracts
// t.Subdir, whose contents land directly in t.Path; nothing outside of
// t.Subdir ever reaches t.Path.
func Extract(c *build.Ctx, t *config.Tar) error {
	ev := trace.Event("step", "Tar", "url", t.URL, "path", t.Path, "subdir", t.Subdir)
	defer ev.Done()

	fpath := filepath.Join(c.RootDir, t.Path)
	filename, err := Fetch(c, t.URL)
	if err != nil {
		return err
	}
	subdir := filepath.Clean(t.Subdir)
	if subdir == "." {
		return UnpackFile(c, filename, fpath, nil, nil)
	}
	if filepath.IsAbs(subdir) || subdir == ".." || strings.HasPrefix(subdir, "../") {
		return xerrors.Errorf("subdir %q must be relative to the archive root", t.Subdir)
	}

	tmppath := filepath.Join(c.TmpDir(), filepath.Base(filename))
	tmpsub := filepath.Join(tmppath, subdir)
	if err := fileutil.EnsureDir(tmpsub, true); err != nil {
		return xerrors.Errorf("error making dir: %w", err)
	}
	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		if err := fileutil.EnsureDir(fpath, true); err != nil {
			return xerrors.Errorf("error making dir: %w", err)
		}
	}
	if err := bindMount(fpath, tmpsub); err != nil {
		return err
	}
	unregister := oninterrupt.Register(func() {
		if err := unmount(tmpsub); err != nil {
			log.Print(err)
		}
	})
	res := UnpackFile(c, filename, tmppath, []string{subdir}, nil)
	// The staging mount must be gone before any error is returned.
	if err := unmount(tmpsub); err != nil {
		return err
	}
	unregister()
	removeStaging(tmpsub, tmppath)
	return res
}

// removeStaging removes the (now empty) directories from tmpsub up to and
// including tmppath. It uses rmdir(2), so content is never removed.
func removeStaging(tmpsub, tmppath string) {
	for dir := tmpsub; ; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			log.Printf("cleaning up staging directory: %v", err)
			return
		}
		if dir == tmppath || dir == filepath.Dir(dir) {
			return
		}
	}
}
