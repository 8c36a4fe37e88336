package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/reader"
)

const lsHelp = `lip ls [-flags] <archive.lip>

List the members of a LIP archive in on-disk (lexicographic) order.

Example:
  % lip ls rootfs.lip
`

func ls(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("ls", flag.ExitOnError)
	var long = fset.Bool("l", false, "show type, size, and mtime alongside each name")
	fset.Usage = usage(fset, lsHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: ls <archive.lip>")
	}

	f, err := os.Open(fset.Arg(0))
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

	color := isatty.IsTerminal(os.Stdout.Fd())
	for _, card := range r.Iter() {
		if !*long {
			fmt.Println(string(card.ArcName))
			continue
		}
		mtime := time.Unix(0, card.Mtime*100).UTC().Format(time.RFC3339)
		fmt.Printf("%s %10d %s %s\n", typeLabel(card, color), card.Size(), mtime, card.ArcName)
	}
	return nil
}

func typeLabel(card lip.FileCard, color bool) string {
	var tag string
	switch card.Type() {
	case lip.TypeDirectory:
		tag = "d"
	case lip.TypeSymlink:
		tag = "l"
	default:
		tag = "-"
	}
	flags := "-"
	if card.IsExecutable() {
		flags = "x"
	}
	compressed := "-"
	if card.IsLZ4Compressed() {
		compressed = "z"
	}
	label := tag + flags + compressed
	if !color {
		return label
	}
	return "\x1b[36m" + label + "\x1b[0m"
}

// fileReadAt adapts an *os.File to reader.Pread.
func fileReadAt(f *os.File) reader.Pread {
	return func(buf []byte, off int64) (int, error) {
		return f.ReadAt(buf, off)
	}
}
