package main

import (
	"flag"
	"fmt"

	"github.com/distr1/rootfs"
	"github.com/distr1/rootfs/internal/fileutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const hashHelp = `rootfs hash [-flags] <path>...

Print a digest of each file system tree, covering paths, permissions,
ownership and content, but not timestamps.

Example:
  % rootfs hash -owner=0:0 /tmp/root/usr/local
`

// digestTrees digests all paths concurrently. The result is in the order of
// paths.
func digestTrees(paths []string, owner *rootfs.Owner) ([]string, error) {
	sums := make([]string, len(paths))
	var eg errgroup.Group
	for idx, path := range paths {
		idx, path := idx, path // copy
		eg.Go(func() error {
			sum, err := fileutil.DigestTree(path, owner)
			if err != nil {
				return err
			}
			sums[idx] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

func hash(args []string) error {
	fset := flag.NewFlagSet("hash", flag.ExitOnError)
	fset.Usage = usage(fset, hashHelp)
	owner := fset.String("owner", "", "uid:gid to hash instead of the recorded owner")
	fset.Parse(args)
	if fset.NArg() < 1 {
		return xerrors.Errorf("syntax: hash [-flags] <path>...")
	}
	o, err := rootfs.ParseOwner(*owner)
	if err != nil {
		return err
	}
	sums, err := digestTrees(fset.Args(), o)
	if err != nil {
		return err
	}
	for idx, path := range fset.Args() {
		fmt.Printf("%s  %s\n", sums[idx], path)
	}
	return nil
}
