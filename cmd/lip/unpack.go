package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/reader"
)

const unpackHelp = `lip unpack [-flags] <archive.lip> <directory>

Extract every member of a LIP archive into directory, recreating
directories, symlinks, and regular files (including the executable bit).

Example:
  % lip unpack rootfs.lip ./rootfs
`

func unpack(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("unpack", flag.ExitOnError)
	fset.Usage = usage(fset, unpackHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: unpack <archive.lip> <directory>")
	}
	archivePath, dstDir := fset.Arg(0), fset.Arg(1)

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
	content := reader.NewContent(fileReadAt(f))

	for _, card := range r.Iter() {
		dst := filepath.Join(dstDir, string(card.ArcName))
		switch card.Type() {
		case lip.TypeDirectory:
			if err := os.MkdirAll(dst, 0755); err != nil {
				return xerrors.Errorf("mkdir %s: %w", dst, err)
			}

		case lip.TypeSymlink:
			target, err := content.Retrieve(card)
			if err != nil {
				return xerrors.Errorf("retrieve %s: %w", card.ArcName, err)
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return err
			}
			os.Remove(dst)
			if err := os.Symlink(string(target), dst); err != nil {
				return xerrors.Errorf("symlink %s: %w", dst, err)
			}

		default:
			if err := extractRegularFile(content, card, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractRegularFile(content reader.Content, card lip.FileCard, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return xerrors.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	mode := os.FileMode(0644)
	if card.IsExecutable() {
		mode = 0755
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return xerrors.Errorf("create %s: %w", dst, err)
	}
	err = content.Copy(card, func(p []byte) error {
		_, err := out.Write(p)
		return err
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return xerrors.Errorf("extract %s: %w", dst, err)
	}
	return nil
}
