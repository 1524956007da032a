package main

import (
	"flag"

	"github.com/distr1/rootfs"
	"github.com/distr1/rootfs/internal/fileutil"
	"golang.org/x/xerrors"
)

const copyHelp = `rootfs copy [-flags] <src> <dest>

Merge the tree src into dest. Existing directories in dest keep their
permissions and ownership; files and symlinks are replaced.

Example:
  % rootfs copy -owner=1000:1000 /tmp/build/out /tmp/root/opt/app
`

func copyCmd(args []string) error {
	fset := flag.NewFlagSet("copy", flag.ExitOnError)
	fset.Usage = usage(fset, copyHelp)
	owner := fset.String("owner", "", "uid:gid to assign instead of the source owner")
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: copy [-flags] <src> <dest>")
	}
	o, err := rootfs.ParseOwner(*owner)
	if err != nil {
		return err
	}
	return fileutil.CopyTree(fset.Arg(0), fset.Arg(1), o)
}
