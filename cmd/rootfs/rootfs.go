// Program rootfs assembles container root file systems from archive and
// package manager steps.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/distr1/rootfs/internal/trace"
)

var tracefile = flag.String("tracefile", "", "path to store Chrome trace events (build steps) at")

func main() {
	flag.Parse()

	if *tracefile != "" {
		f, err := os.Create(*tracefile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		trace.Sink(f)
	}

	type cmd struct {
		helpText string
		fn       func(args []string) error
	}
	verbs := map[string]cmd{
		"build":  {buildHelp, buildCmd},
		"unpack": {unpackHelp, unpack},
		"hash":   {hashHelp, hash},
		"copy":   {copyHelp, copyCmd},
	}

	args := flag.Args()
	verb := "build"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "syntax: rootfs help <verb>\n")
			fmt.Fprintf(os.Stderr, "\n")
			fmt.Fprintf(os.Stderr, "Verbs:\n")
			fmt.Fprintf(os.Stderr, "\tbuild  - run the setup steps of a container configuration\n")
			fmt.Fprintf(os.Stderr, "\tunpack - extract (parts of) an archive\n")
			fmt.Fprintf(os.Stderr, "\thash   - print the digest of a file system tree\n")
			fmt.Fprintf(os.Stderr, "\tcopy   - merge a file system tree into another\n")
			os.Exit(2)
		}
		verb = args[0]
		args = []string{"-help"}
	}
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: rootfs <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %+v\n", verb, err)
		os.Exit(1)
	}
}
