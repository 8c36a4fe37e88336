// Command lip packs, lists, extracts, and verifies LIP archives.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/lippkg/lip"

	"flag"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	memprofile = flag.String("memprofile", "", "path to store a memory profile at")
)

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	verbs := map[string]cmd{
		"pack":   {pack},
		"ls":     {ls},
		"cat":    {cat},
		"unpack": {unpack},
		"verify": {verify},
	}

	args := flag.Args()
	verb := "pack"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "lip [-flags] <command> [-flags] <args>\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tpack   - pack a directory tree into a LIP archive\n")
		fmt.Fprintf(os.Stderr, "\tls     - list members of a LIP archive\n")
		fmt.Fprintf(os.Stderr, "\tcat    - print one member's content to stdout\n")
		fmt.Fprintf(os.Stderr, "\tunpack - extract a LIP archive to a directory\n")
		fmt.Fprintf(os.Stderr, "\tverify - recompute digests and compare against the index\n")
		os.Exit(2)
	}

	ctx, canc := lip.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: lip <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		// Run the exit hooks on failure too, so pack can unlink a partial
		// archive; the verb's error is the one reported.
		lip.RunAtExit() //nolint:errcheck
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				return err
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				return err
			}
		}
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return lip.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
