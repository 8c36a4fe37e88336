// Command lipfuse mounts a single LIP archive as a read-only FUSE
// filesystem.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	internalfuse "github.com/lippkg/lip/internal/fuse"
	"github.com/lippkg/lip/reader"
)

const help = `lipfuse [-flags] <archive.lip> <mountpoint>

Mount archive.lip read-only at mountpoint. Unmount with fusermount -u
(Linux) or umount (other platforms).
`

func run() error {
	fset := flag.NewFlagSet("lipfuse", flag.ExitOnError)
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, help)
		fset.PrintDefaults()
	}
	fset.Parse(os.Args[1:])
	if fset.NArg() != 2 {
		fset.Usage()
		return xerrors.Errorf("syntax: lipfuse <archive.lip> <mountpoint>")
	}
	archivePath, mountpoint := fset.Arg(0), fset.Arg(1)

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	pread := func(buf []byte, off int64) (int, error) { return f.ReadAt(buf, off) }
	r, err := reader.Open(pread, fi.Size())
	if err != nil {
		return xerrors.Errorf("open %s: %w", archivePath, err)
	}

	fs := internalfuse.New(r, pread)

	ctx, canc := lip.InterruptibleContext()
	defer canc()

	join, err := internalfuse.Mount(ctx, fs, mountpoint)
	if err != nil {
		return xerrors.Errorf("mount: %w", err)
	}
	return join(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
