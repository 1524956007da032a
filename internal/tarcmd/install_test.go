package tarcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/rootfs/internal/config"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"
)

func TestResolveWorkdir(t *testing.T) {
	mkdirs := func(t *testing.T, names ...string) string {
		dir := t.TempDir()
		for _, name := range names {
			if err := os.Mkdir(filepath.Join(dir, name), 0755); err != nil {
				t.Fatal(err)
			}
		}
		return dir
	}

	t.Run("Single", func(t *testing.T) {
		dir := mkdirs(t, "pkg-1.0", ".git")
		got, err := resolveWorkdir(dir, "")
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(dir, "pkg-1.0"); got != want {
			t.Errorf("resolveWorkdir = %q, want %q", got, want)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		dir := mkdirs(t, ".hidden")
		if _, err := resolveWorkdir(dir, ""); !xerrors.Is(err, ErrEmptyArchive) {
			t.Errorf("resolveWorkdir = %v, want ErrEmptyArchive", err)
		}
	})

	t.Run("Ambiguous", func(t *testing.T) {
		dir := mkdirs(t, "pkg-1.0", "docs")
		_, err := resolveWorkdir(dir, "")
		if !xerrors.Is(err, ErrAmbiguousArchive) {
			t.Fatalf("resolveWorkdir = %v, want ErrAmbiguousArchive", err)
		}
	})

	t.Run("Explicit", func(t *testing.T) {
		dir := mkdirs(t, "pkg-1.0", "docs")
		for subdir, want := range map[string]string{
			".":       dir,
			"pkg-1.0": filepath.Join(dir, "pkg-1.0"),
		} {
			got, err := resolveWorkdir(dir, subdir)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("resolveWorkdir(%q) = %q, want %q", subdir, got, want)
			}
		}
	})
}

func TestInstall(t *testing.T) {
	r := &testRunner{tar: lookTar(t)}
	c := newCtx(t, r)
	writeArchive(t, filepath.Join(c.WorkDir, "pkg-1.0.tar.gz"), []entry{
		{name: "pkg-1.0/"},
		{name: "pkg-1.0/configure", body: "#!/bin/sh\n"},
	})

	step := &config.TarInstall{URL: "./pkg-1.0.tar.gz", Script: "./configure && make install"}
	if err := Install(c, step); err != nil {
		t.Fatal(err)
	}
	if got, want := len(r.cmds), 2; got != want {
		t.Fatalf("got %d commands, want %d (tar, sh)", got, want)
	}
	sh := r.cmds[1]
	if diff := cmp.Diff([]string{"/bin/sh", "-exc", "./configure && make install"}, sh.Args); diff != "" {
		t.Errorf("script invocation: diff (-want +got):\n%s", diff)
	}
	// Without chroot, the container path /tmp/pkg-1.0.tar.gz/pkg-1.0 is
	// found below the root directory.
	if got, want := sh.Dir, filepath.Join(c.TmpDir(), "pkg-1.0.tar.gz", "pkg-1.0"); got != want {
		t.Errorf("script dir = %q, want %q", got, want)
	}
	fi, err := os.Stat(filepath.Join(c.TmpDir(), "pkg-1.0.tar.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fi.Mode().Perm(), os.FileMode(0755); got != want {
		t.Errorf("staging directory permissions = %v, want %v", got, want)
	}
}

func TestInstallChrootDir(t *testing.T) {
	r := &testRunner{tar: lookTar(t)}
	c := newCtx(t, r)
	c.Chroot = true
	writeArchive(t, filepath.Join(c.WorkDir, "pkg.tar"), []entry{
		{name: "src/"},
		{name: "docs/"},
	})
	if err := Install(c, &config.TarInstall{URL: "./pkg.tar", Subdir: "src", Script: "make"}); err != nil {
		t.Fatal(err)
	}
	if got, want := r.cmds[len(r.cmds)-1].Dir, "/tmp/pkg.tar/src"; got != want {
		t.Errorf("script dir = %q, want %q", got, want)
	}
}

func TestInstallResolutionErrors(t *testing.T) {
	tarPath := lookTar(t)
	for _, tt := range []struct {
		name    string
		entries []entry
		want    error
	}{
		{"empty", nil, ErrEmptyArchive},
		{"ambiguous", []entry{{name: "a/"}, {name: "b/x.txt", body: "x"}}, ErrAmbiguousArchive},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := &testRunner{tar: tarPath}
			c := newCtx(t, r)
			writeArchive(t, filepath.Join(c.WorkDir, tt.name+".tar"), tt.entries)
			err := Install(c, &config.TarInstall{URL: "./" + tt.name + ".tar", Script: "true"})
			if !xerrors.Is(err, tt.want) {
				t.Fatalf("Install: got %v, want %v", err, tt.want)
			}
			if got := len(r.cmds); got != 1 {
				t.Errorf("got %d commands, want only tar (script must not run)", got)
			}
		})
	}
}
