package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/env"
	"github.com/distr1/rootfs/internal/tarcmd"
	"golang.org/x/xerrors"
)

const unpackHelp = `rootfs unpack [-flags] <archive>

Extract an archive into an existing directory, optionally restricted to a
comma-separated list of archive members.

Example:
  % rootfs unpack -C /tmp/out -include=pkg-1.0/bin -exclude=pkg-1.0/bin/test pkg-1.0.tar.gz
  % rootfs unpack -list pkg-1.0.tar.gz
`

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func unpack(args []string) error {
	fset := flag.NewFlagSet("unpack", flag.ExitOnError)
	fset.Usage = usage(fset, unpackHelp)
	var (
		dir      = fset.String("C", ".", "directory to extract into")
		includes = fset.String("include", "", "comma-separated list of archive members to extract")
		excludes = fset.String("exclude", "", "comma-separated list of archive members to skip")
		tar      = fset.String("tar", strings.Join(env.TarCommand, " "), "archive tool invocation prefix")
		list     = fset.Bool("list", false, "list the top-level entries instead of extracting")
	)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: unpack [-flags] <archive>")
	}
	fn := fset.Arg(0)

	if *list {
		entries, err := tarcmd.ListTopLevel(fn)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil
	}

	c := build.NewCtx()
	c.Tar = strings.Fields(*tar)
	c.Stdout = os.Stdout
	return tarcmd.UnpackFile(c, fn, *dir, splitList(*includes), splitList(*excludes))
}
