package main

import (
	"context"
	"flag"
	"os"

	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/internal/walk"
	"github.com/lippkg/lip/packer"
)

const packHelp = `lip pack [-flags] <directory> <archive.lip>

Pack a directory tree into a single LIP archive.

Example:
  % lip pack -compress-min-bytes=4096 ./rootfs rootfs.lip
`

func pack(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("pack", flag.ExitOnError)
	var (
		compressMinBytes = fset.Int64("compress-min-bytes", 0, "compress regular files of at least this size with LZ4 (0 disables compression)")
	)
	fset.Usage = usage(fset, packHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: pack <directory> <archive.lip>")
	}
	srcDir, dstPath := fset.Arg(0), fset.Arg(1)

	out, err := os.Create(dstPath)
	if err != nil {
		return xerrors.Errorf("create %s: %w", dstPath, err)
	}

	// Unlink the partial archive if anything below fails, matching spec.md
	// §7's guidance that a poisoned packer's destination file should not be
	// left behind.
	ok := false
	lip.RegisterAtExit(func() error {
		if ok {
			return nil
		}
		return os.Remove(dstPath)
	})

	p := packer.New()
	if err := p.Start(out); err != nil {
		out.Close()
		return xerrors.Errorf("start: %w", err)
	}

	shouldCompress := walk.CompressNone
	if *compressMinBytes > 0 {
		min := *compressMinBytes
		shouldCompress = func(name string, size int64) bool { return size >= min }
	}

	if err := walk.Tree(p, srcDir, walk.Options{ShouldCompress: shouldCompress}); err != nil {
		out.Close()
		return xerrors.Errorf("walk %s: %w", srcDir, err)
	}

	if err := p.Finish(); err != nil {
		out.Close()
		return xerrors.Errorf("finish: %w", err)
	}

	if err := out.Close(); err != nil {
		return err
	}
	ok = true
	return nil
}
