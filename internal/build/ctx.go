// Package build contains the build context which is passed explicitly to
// every materialization step.
package build

import (
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/distr1/rootfs/internal/config"
	"github.com/distr1/rootfs/internal/env"
	"github.com/distr1/rootfs/internal/fileutil"
	"golang.org/x/xerrors"
)

// Downloader fetches remote archives. Implemented by download.Cache.
type Downloader interface {
	Download(url string) (path string, _ error)
}

// Runner executes commands. The default runs them; tests substitute a
// recorder.
type Runner interface {
	Run(cmd *exec.Cmd) error
	Output(cmd *exec.Cmd) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(cmd *exec.Cmd) error {
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", cmd.Args, err)
	}
	return nil
}

func (execRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	out, err := cmd.Output()
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", cmd.Args, err)
	}
	return out, nil
}

// Ctx is a build context: it contains configuration and state about the
// container root file system being built.
type Ctx struct {
	RootDir      string // e.g. /rootfs/root
	ContainerDir string // e.g. /rootfs/container
	WorkDir      string // e.g. /work
	CacheDir     string // e.g. /rootfs/cache

	// Tar is the archive tool invocation prefix, e.g. [tar] or
	// [/rootfs/bin/busybox tar].
	Tar []string

	// Env is the environment of commands run within the container. PATH is
	// used to resolve command names.
	Env map[string]string

	// Chroot runs commands with RootDir as their root directory.
	Chroot bool

	// MountCaches bind-mounts registered cache directories into RootDir.
	MountCaches bool

	GemSettings config.GemSettings

	Downloader Downloader
	Runner     Runner
	Stdout     io.Writer
	Stderr     io.Writer

	cacheDirs map[string]string // name → path within the container
	locks     []*fileutil.Lock
	mounts    []string
}

// NewCtx returns a build context using the default locations from package
// env.
func NewCtx() *Ctx {
	return &Ctx{
		RootDir:      env.RootDir,
		ContainerDir: env.ContainerDir,
		WorkDir:      env.WorkDir,
		CacheDir:     env.CacheDir,
		Tar:          env.TarCommand,
		Env: map[string]string{
			"PATH": "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
			"HOME": "/tmp",
		},
		GemSettings: config.DefaultGemSettings(),
		Runner:      execRunner{},
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// TmpDir is the staging area within the container root.
func (c *Ctx) TmpDir() string {
	return filepath.Join(c.RootDir, "tmp")
}

func (c *Ctx) root() string {
	if c.Chroot {
		return c.RootDir
	}
	return "/"
}

func (c *Ctx) environ(extra []string) []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	environ := make([]string, 0, len(keys)+len(extra))
	for _, k := range keys {
		environ = append(environ, k+"="+c.Env[k])
	}
	return append(environ, extra...)
}

// Command returns a command which runs name (resolved through the PATH in
// c.Env) within the container, in c.WorkDir.
func (c *Ctx) Command(name string, args ...string) (*exec.Cmd, error) {
	path, err := FindCmd(c.root(), name, c.Env)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, args...)
	cmd.Dir = c.WorkDir
	cmd.Env = c.environ(nil)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if c.Chroot {
		cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: c.RootDir}
	}
	return cmd, nil
}

// Run runs cmd through c.Runner.
func (c *Ctx) Run(cmd *exec.Cmd) error {
	return c.runner().Run(cmd)
}

// Capture runs cmd and returns its standard output.
func (c *Ctx) Capture(cmd *exec.Cmd) ([]byte, error) {
	cmd.Stdout = nil // set by exec.Cmd.Output
	return c.runner().Output(cmd)
}

// RunAt runs args[0] with args[1:] in dir (a path within the container),
// with extraEnv (KEY=value) added to the environment. Without Chroot, dir is
// translated to its location below RootDir.
func (c *Ctx) RunAt(args []string, dir string, extraEnv ...string) error {
	if len(args) == 0 {
		return xerrors.New("BUG: RunAt called without a command")
	}
	cmd, err := c.Command(args[0], args[1:]...)
	if err != nil {
		return err
	}
	cmd.Dir = dir
	if !c.Chroot {
		cmd.Dir = filepath.Join(c.RootDir, dir)
	}
	cmd.Env = c.environ(extraEnv)
	return c.Run(cmd)
}

func (c *Ctx) runner() Runner {
	if c.Runner == nil {
		return execRunner{}
	}
	return c.Runner
}

// Close unmounts all cache directories and releases their locks, in reverse
// order of registration. Unmount failures are logged; the first one is
// returned.
func (c *Ctx) Close() error {
	var first error
	for i := len(c.mounts) - 1; i >= 0; i-- {
		if err := unmount(c.mounts[i]); err != nil {
			log.Printf("%v", err)
			if first == nil {
				first = err
			}
		}
	}
	c.mounts = nil
	for i := len(c.locks) - 1; i >= 0; i-- {
		c.locks[i].Release()
	}
	c.locks = nil
	return first
}
