package tarcmd

import (
	"archive/tar"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/distr1/rootfs/internal/build"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type entry struct {
	name string
	body string // ignored for directories (names ending in /)
}

func writeArchive(t *testing.T, fn string, entries []entry) {
	t.Helper()
	f, err := os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var w io.Writer = f
	var zw io.WriteCloser
	switch filepath.Ext(fn) {
	case ".gz":
		zw = pgzip.NewWriter(f)
	case ".zst":
		if zw, err = zstd.NewWriter(f); err != nil {
			t.Fatal(err)
		}
	}
	if zw != nil {
		w = zw
	}
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0644,
			Typeflag: tar.TypeReg,
			Size:     int64(len(e.body)),
		}
		if strings.HasSuffix(e.name, "/") {
			hdr.Mode = 0755
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// testRunner records all commands. If tar is non-empty, commands running tar
// are executed for real.
type testRunner struct {
	tar  string
	fail error
	cmds []*exec.Cmd
}

func (r *testRunner) Run(cmd *exec.Cmd) error {
	r.cmds = append(r.cmds, cmd)
	if r.fail != nil {
		return r.fail
	}
	if r.tar != "" && cmd.Args[0] == r.tar {
		return cmd.Run()
	}
	return nil
}

func (r *testRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	return nil, r.Run(cmd)
}

func (r *testRunner) args() [][]string {
	var res [][]string
	for _, cmd := range r.cmds {
		res = append(res, cmd.Args)
	}
	return res
}

func lookTar(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("tar")
	if err != nil {
		t.Skip("tar not found in $PATH")
	}
	return path
}

// newCtx returns a build context with a fresh root and work directory.
func newCtx(t *testing.T, r *testRunner) *build.Ctx {
	t.Helper()
	c := build.NewCtx()
	c.RootDir = t.TempDir()
	c.WorkDir = t.TempDir()
	c.Runner = r
	c.Stdout = ioutil.Discard
	if r.tar != "" {
		c.Tar = []string{r.tar}
	}
	if err := os.Mkdir(c.TmpDir(), 0755); err != nil {
		t.Fatal(err)
	}
	return c
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return names
}
