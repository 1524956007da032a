package build

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// FindCmd resolves cmd through the PATH in env. Names containing a slash are
// returned unchanged. Candidates are checked for existence below root; the
// returned path is relative to root (i.e. as seen by the command).
func FindCmd(root, cmd string, env map[string]string) (string, error) {
	if strings.Contains(cmd, "/") {
		return cmd, nil
	}
	paths, ok := env["PATH"]
	if !ok {
		return "", xerrors.Errorf("command %s is not absolute and no PATH set", cmd)
	}
	for _, dir := range strings.Split(paths, ":") {
		if !filepath.IsAbs(dir) {
			log.Printf("WARNING: all items in PATH must be absolute, not %q", dir)
			continue
		}
		path := filepath.Join(dir, cmd)
		if _, err := os.Stat(filepath.Join(root, path)); err == nil {
			return path, nil
		}
	}
	return "", xerrors.Errorf("command %s not found in %q", cmd, paths)
}
