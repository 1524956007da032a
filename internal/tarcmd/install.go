package tarcmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/config"
	"github.com/distr1/rootfs/internal/fileutil"
	"github.com/distr1/rootfs/internal/trace"
	"golang.org/x/xerrors"
)

var (
	// ErrEmptyArchive is returned by Install when the archive contains no
	// visible top-level entry.
	ErrEmptyArchive = xerrors.New("tar archive was empty")

	// ErrAmbiguousArchive is returned by Install when the archive contains
	// more than one top-level entry and no subdir was configured.
	ErrAmbiguousArchive = xerrors.New(`multiple directories were unpacked. If that is expected, use subdir: "." or any other directory`)
)

// Install extracts the archive t.URL into a staging directory within the
// container and runs t.Script (with /bin/sh -exc) in the unpacked source
// tree.
func Install(c *build.Ctx, t *config.TarInstall) error {
	ev := trace.Event("step", "TarInstall", "url", t.URL, "subdir", t.Subdir)
	defer ev.Done()

	filename, err := Fetch(c, t.URL)
	if err != nil {
		return err
	}
	tmppath := filepath.Join(c.TmpDir(), filepath.Base(filename))
	if err := os.MkdirAll(tmppath, 0755); err != nil {
		return xerrors.Errorf("error making dir: %w", err)
	}
	if err := os.Chmod(tmppath, 0755); err != nil {
		return xerrors.Errorf("error setting permissions: %w", err)
	}
	if err := UnpackFile(c, filename, tmppath, nil, nil); err != nil {
		return err
	}
	workdir, err := resolveWorkdir(tmppath, t.Subdir)
	if err != nil {
		return xerrors.Errorf("%s: %w", t.URL, err)
	}
	rel, err := filepath.Rel(c.RootDir, workdir)
	if err != nil {
		return err
	}
	return c.RunAt([]string{"/bin/sh", "-exc", t.Script}, filepath.Join("/", rel))
}

// resolveWorkdir returns the directory to run the install script in: subdir
// (relative to tmppath) if set, otherwise the only visible entry of tmppath.
func resolveWorkdir(tmppath, subdir string) (string, error) {
	if subdir != "" {
		return filepath.Join(tmppath, subdir), nil
	}
	items, err := fileutil.ReadVisibleEntries(tmppath)
	if err != nil {
		return "", xerrors.Errorf("error reading dir: %w", err)
	}
	switch len(items) {
	case 0:
		return "", ErrEmptyArchive
	case 1:
		return items[0], nil
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = filepath.Base(item)
	}
	return "", xerrors.Errorf("found %s: %w", strings.Join(names, ", "), ErrAmbiguousArchive)
}
