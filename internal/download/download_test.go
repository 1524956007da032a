package download_test

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/distr1/rootfs/internal/download"
	"github.com/distr1/rootfs/internal/fileutil"
	"golang.org/x/xerrors"
)

func TestFilename(t *testing.T) {
	a, err := download.Filename("https://example.org/dist/pkg-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(a, "-pkg-1.0.tar.gz") || len(a) != 16+len("-pkg-1.0.tar.gz") {
		t.Errorf("Filename = %q, want <16 hex digits>-pkg-1.0.tar.gz", a)
	}
	b, err := download.Filename("https://mirror.example.org/dist/pkg-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("different URLs map to the same file name %q", a)
	}
}

func TestDownload(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != "/pkg-1.0.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("archive contents"))
	}))
	defer srv.Close()

	c := &download.Cache{Dir: filepath.Join(t.TempDir(), "downloads")}
	fn, err := c.Download(srv.URL + "/pkg-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "archive contents"; got != want {
		t.Errorf("downloaded content = %q, want %q", got, want)
	}

	again, err := c.Download(srv.URL + "/pkg-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if again != fn {
		t.Errorf("second Download = %q, want cached %q", again, fn)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("server saw %d requests, want 1 (cached)", got)
	}

	if _, err := c.Download(srv.URL + "/missing.tar.gz"); err == nil || !strings.Contains(err.Error(), "unexpected HTTP status") {
		t.Errorf("Download(404) = %v, want HTTP status error", err)
	}
	if _, err := c.Download("ftp://example.org/pkg.tar"); err == nil {
		t.Errorf("Download(ftp) unexpectedly succeeded")
	}
}

func TestDownloadLocked(t *testing.T) {
	dir := t.TempDir()
	const rawurl = "http://127.0.0.1:1/pkg.tar"
	name, err := download.Filename(rawurl)
	if err != nil {
		t.Fatal(err)
	}
	l, err := fileutil.LockExclusive(filepath.Join(dir, "."+name+".lock"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	c := &download.Cache{Dir: dir, LockAttempts: 2, LockDelay: time.Millisecond}
	if _, err := c.Download(rawurl); !xerrors.Is(err, fileutil.ErrWouldBlock) {
		t.Errorf("Download with held lock: got %v, want ErrWouldBlock", err)
	}
}
