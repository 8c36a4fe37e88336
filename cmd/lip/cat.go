package main

import (
	"context"
	"flag"
	"os"

	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/reader"
)

const catHelp = `lip cat [-flags] <archive.lip> <member>

Print one archive member's decoded content to stdout.

Example:
  % lip cat rootfs.lip etc/passwd
`

func cat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("cat", flag.ExitOnError)
	fset.Usage = usage(fset, catHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: cat <archive.lip> <member>")
	}
	archivePath, member := fset.Arg(0), fset.Arg(1)

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	r, err := reader.Open(fileReadAt(f), fi.Size())
	if err != nil {
		return xerrors.Errorf("open: %w", err)
	}

	card, ok := r.Find(member)
	if !ok {
		return xerrors.Errorf("%s: member not found: %w", member, lip.ErrNotFound)
	}
	if card.Type() == lip.TypeDirectory {
		return xerrors.Errorf("%s: is a directory", member)
	}

	c := reader.NewContent(fileReadAt(f))
	return c.Copy(card, func(p []byte) error {
		_, err := os.Stdout.Write(p)
		return err
	})
}
