// Package tarcmd materializes archives into the container root file system
// using an external tar.
package tarcmd

import (
	"archive/tar"
	"compress/bzip2"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// decompressFlag returns the tar flag selecting the decompressor for fn, based
// solely on its extension. Unknown extensions are left to tar.
func decompressFlag(fn string) string {
	switch filepath.Ext(fn) {
	case ".gz", ".tgz":
		return "-z"
	case ".bz", ".tbz":
		return "-j"
	case ".xz", ".txz":
		return "-J"
	}
	return ""
}

// UnpackFile extracts the archive src into the existing directory tgt. If
// includes is non-empty, only those archive members are extracted; excludes
// are skipped even if included.
func UnpackFile(c *build.Ctx, src, tgt string, includes, excludes []string) error {
	if len(c.Tar) == 0 {
		return xerrors.New("no archive tool configured")
	}
	log.Printf("unpacking %s -> %s", src, tgt)
	args := append([]string{}, c.Tar[1:]...)
	args = append(args, "-x", "-f", src, "-C", tgt)
	args = append(args, includes...)
	for _, e := range excludes {
		args = append(args, "--exclude", e)
	}
	if flag := decompressFlag(src); flag != "" {
		args = append(args, flag)
	}
	cmd := exec.Command(c.Tar[0], args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := c.Run(cmd); err != nil {
		return xerrors.Errorf("unpacking %s: %w", src, err)
	}
	return nil
}

// Fetch returns the local path of the archive at location: locations starting
// with a dot are relative to the project directory, everything else is
// downloaded through c.Downloader.
func Fetch(c *build.Ctx, location string) (string, error) {
	if strings.HasPrefix(location, ".") {
		return filepath.Join(c.WorkDir, location), nil
	}
	if c.Downloader == nil {
		return "", xerrors.Errorf("cannot fetch %s: no downloader configured", location)
	}
	return c.Downloader.Download(location)
}

// ListTopLevel returns the visible top-level entries of the archive fn,
// without extracting it. Uncompressed, gzip, bzip2 and zstd archives are
// supported.
func ListTopLevel(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	switch decompressFlag(fn) {
	case "-z":
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, xerrors.Errorf("%s: %w", fn, err)
		}
		defer zr.Close()
		r = zr
	case "-j":
		r = bzip2.NewReader(f)
	case "-J":
		return nil, xerrors.Errorf("%s: listing xz archives is not supported", fn)
	default:
		switch filepath.Ext(fn) {
		case ".bz2":
			r = bzip2.NewReader(f)
		case ".zst", ".tzst":
			zr, err := zstd.NewReader(f)
			if err != nil {
				return nil, xerrors.Errorf("%s: %w", fn, err)
			}
			defer zr.Close()
			r = zr
		}
	}

	seen := make(map[string]bool)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("%s: %w", fn, err)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if idx := strings.IndexByte(name, '/'); idx > -1 {
			name = name[:idx]
		}
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		seen[name] = true
	}
	entries := make([]string, 0, len(seen))
	for name := range seen {
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return entries, nil
}
