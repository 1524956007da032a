package mount

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"
)

func TestParseMountinfo(t *testing.T) {
	const mountinfo = `22 1 8:1 / / rw,relatime shared:1 - ext4 /dev/sda1 rw
23 22 0:21 / /proc rw,nosuid,nodev,noexec,relatime shared:5 - proc proc rw
61 22 8:1 /home/michael/build /tmp/staging\040dir/b rw,relatime shared:1 - ext4 /dev/sda1 rw
truncated line
`
	got, err := parseMountinfo(strings.NewReader(mountinfo))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/", "/proc", "/tmp/staging dir/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseMountinfo: diff (-want +got):\n%s", diff)
	}
}

func TestUnescapeOctal(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{`/plain`, `/plain`},
		{`/a\040b`, `/a b`},
		{`/tab\011`, "/tab\t"},
		{`/back\134slash`, `/back\slash`},
		{`/short\04`, `/short\04`},
	} {
		if got := unescapeOctal(tt.in); got != tt.want {
			t.Errorf("unescapeOctal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnmountNotMounted(t *testing.T) {
	dir := t.TempDir()
	if err := Unmount(dir); err != nil && !xerrors.Is(err, os.ErrPermission) {
		t.Errorf("Unmount(not a mount point): %v", err)
	}
	if err := Unmount(filepath.Join(dir, "missing")); err != nil && !xerrors.Is(err, os.ErrPermission) {
		t.Errorf("Unmount(missing): %v", err)
	}
}

func TestBindMount(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("bind mounts require root")
	}
	src := t.TempDir()
	dest := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(src, "marker"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := BindMount(src, dest); err != nil {
		t.Skipf("bind mount not permitted in this environment: %v", err)
	}
	mounted, err := Mountpoint(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !mounted {
		t.Errorf("Mountpoint(%s) = false after BindMount", dest)
	}
	if b, err := ioutil.ReadFile(filepath.Join(dest, "marker")); err != nil || string(b) != "hello" {
		t.Errorf("marker not visible through bind mount: %q, %v", b, err)
	}
	if err := Unmount(dest); err != nil {
		t.Fatal(err)
	}
	if err := Unmount(dest); err != nil {
		t.Errorf("second Unmount: %v", err)
	}
	mounted, err = Mountpoint(dest)
	if err != nil {
		t.Fatal(err)
	}
	if mounted {
		t.Errorf("Mountpoint(%s) = true after Unmount", dest)
	}
}
