package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/config"
	"github.com/distr1/rootfs/internal/distrib"
	"github.com/distr1/rootfs/internal/download"
	"github.com/distr1/rootfs/internal/env"
	"github.com/distr1/rootfs/internal/fileutil"
	"github.com/distr1/rootfs/internal/gem"
	"github.com/distr1/rootfs/internal/tarcmd"
	"golang.org/x/xerrors"
)

const buildHelp = `rootfs build [-flags]

Run the setup steps of a container configuration, materializing the container
root file system in -root.

Example:
  % rootfs build -config=rootfs.yaml -root=/tmp/root -chroot
`

func buildCmd(args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	fset.Usage = usage(fset, buildHelp)
	var (
		configPath = fset.String("config", "rootfs.yaml", "path to the container configuration")
		root       = fset.String("root", env.RootDir, "directory in which to assemble the root file system")
		container  = fset.String("container", env.ContainerDir, "directory for metadata about the container (e.g. package lists)")
		work       = fset.String("work", env.WorkDir, "project directory; archive locations starting with a dot are relative to it")
		cache      = fset.String("cache", env.CacheDir, "directory holding caches shared between builds")
		tar        = fset.String("tar", strings.Join(env.TarCommand, " "), "archive tool invocation prefix")
		chroot     = fset.Bool("chroot", false, "run commands chrooted into -root")
		mountCache = fset.Bool("mount_caches", false, "bind-mount shared cache directories into -root")
	)
	fset.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	c := build.NewCtx()
	c.RootDir = *root
	c.ContainerDir = *container
	c.WorkDir = *work
	c.CacheDir = *cache
	c.Tar = strings.Fields(*tar)
	c.Chroot = *chroot
	c.MountCaches = *mountCache
	c.GemSettings = cfg.GemSettings
	c.Downloader = &download.Cache{Dir: filepath.Join(c.CacheDir, "downloads")}
	defer c.Close()

	for _, dir := range []string{c.TmpDir(), c.ContainerDir} {
		if err := fileutil.EnsureDir(dir, true); err != nil {
			return err
		}
	}

	var distro distrib.Distribution
	if cfg.Distribution != "" {
		if distro, err = distrib.ForName(cfg.Distribution); err != nil {
			return err
		}
	}
	if err := runSteps(c, distro, cfg.Setup); err != nil {
		return err
	}
	return c.Close()
}

// runSteps runs steps in order, stopping at the first error. If any step
// installed gems, the list of installed gems is recorded afterwards.
func runSteps(c *build.Ctx, distro distrib.Distribution, steps []config.Step) error {
	var gems bool
	for idx, step := range steps {
		log.Printf("step %d/%d: %s", idx+1, len(steps), step.Kind())
		var err error
		switch {
		case step.Tar != nil:
			err = tarcmd.Extract(c, step.Tar)
		case step.TarInstall != nil:
			err = tarcmd.Install(c, step.TarInstall)
		case step.GemInstall != nil, step.GemBundle != nil:
			if distro == nil {
				return xerrors.Errorf("step %d: %s requires a distribution", idx+1, step.Kind())
			}
			gems = true
			if step.GemInstall != nil {
				err = gem.Install(distro, c, step.GemInstall)
			} else {
				err = gem.Bundle(distro, c, step.GemBundle)
			}
		default:
			err = xerrors.New("empty step")
		}
		if err != nil {
			return xerrors.Errorf("step %d (%s): %w", idx+1, step.Kind(), err)
		}
	}
	if gems {
		return gem.List(c)
	}
	return nil
}

func usage(fset *flag.FlagSet, help string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "%s\n", help)
		fmt.Fprintf(os.Stderr, "Flags for rootfs %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}
