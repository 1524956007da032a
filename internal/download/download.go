// Package download fetches remote archives into a download cache shared by
// all builds on a host.
//
// Downloaded files are not verified against a checksum: archive steps carry
// no digest to verify against yet.
package download

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/distr1/rootfs/internal/fileutil"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// Cache is a directory of downloaded files, named after their URL.
type Cache struct {
	Dir string

	// Client defaults to a client with transparent decompression disabled.
	Client *http.Client

	// LockAttempts and LockDelay control how long to wait for a concurrent
	// download of the same URL. Zero values select 50 attempts starting at
	// 100ms.
	LockAttempts int
	LockDelay    time.Duration
}

// Filename returns the name under which rawurl is stored in the cache: a
// short hash of the URL followed by its last path component.
func Filename(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", xerrors.Errorf("url.Parse: %v", err)
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		base = "index"
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(rawurl)))[:16] + "-" + base, nil
}

func (c *Cache) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	// We need to disable compression: with some web servers,
	// http.DefaultTransport’s default compression handling results in an
	// unwanted gunzip step, i.e. a .tar.gz would be stored uncompressed.
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return &http.Client{Transport: t}
}

// Download returns the path of rawurl in the cache, fetching it first unless
// it is already present. Concurrent downloads of the same URL (from any
// process) are serialized through a lock file next to the download.
func (c *Cache) Download(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", xerrors.Errorf("url.Parse: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", xerrors.Errorf("unimplemented URL scheme %q", u.Scheme)
	}
	name, err := Filename(rawurl)
	if err != nil {
		return "", err
	}
	if err := fileutil.EnsureDir(c.Dir, true); err != nil {
		return "", err
	}
	fn := filepath.Join(c.Dir, name)

	attempts, delay := c.LockAttempts, c.LockDelay
	if attempts == 0 {
		attempts = 50
	}
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	l, err := fileutil.WaitExclusive(filepath.Join(c.Dir, "."+name+".lock"), attempts, delay)
	if err != nil {
		return "", err
	}
	defer l.Release()

	if _, err := os.Stat(fn); err == nil {
		return fn, nil // already downloaded
	} else if !os.IsNotExist(err) {
		return "", err
	}

	log.Printf("downloading %s to %s", rawurl, fn)
	if err := c.fetch(rawurl, fn); err != nil {
		return "", xerrors.Errorf("download %s: %w", rawurl, err)
	}
	return fn, nil
}

func (c *Cache) fetch(rawurl, fn string) error {
	resp, err := c.client().Get(rawurl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return xerrors.Errorf("unexpected HTTP status: got %d (%v), want %d", got, resp.Status, want)
	}
	f, err := renameio.TempFile("", fn)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}
