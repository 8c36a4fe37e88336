// Command lip2cpio exports a LIP archive's members as a newc-format cpio
// stream on stdout, suitable for piping into an initramfs build or
// `cpio -i`.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/cavaliercoder/go-cpio"
	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/reader"
)

const help = `lip2cpio [-flags] <archive.lip>

Export every member of archive.lip as a cpio stream on stdout.
`

func run() error {
	fset := flag.NewFlagSet("lip2cpio", flag.ExitOnError)
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, help)
		fset.PrintDefaults()
	}
	fset.Parse(os.Args[1:])
	if fset.NArg() != 1 {
		fset.Usage()
		return xerrors.Errorf("syntax: lip2cpio <archive.lip>")
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

	pread := func(buf []byte, off int64) (int, error) { return f.ReadAt(buf, off) }
	r, err := reader.Open(pread, fi.Size())
	if err != nil {
		return xerrors.Errorf("open: %w", err)
	}
	content := reader.NewContent(pread)

	out := bufio.NewWriter(os.Stdout)
	wr := cpio.NewWriter(out)

	for _, card := range r.Iter() {
		if err := writeMember(wr, content, card); err != nil {
			return err
		}
	}
	if err := wr.Close(); err != nil {
		return err
	}
	return out.Flush()
}

func writeMember(wr *cpio.Writer, content reader.Content, card lip.FileCard) error {
	name := string(card.ArcName)
	switch card.Type() {
	case lip.TypeDirectory:
		return wr.WriteHeader(&cpio.Header{Name: name, Mode: cpio.ModeDir | 0755})

	case lip.TypeSymlink:
		target, err := content.Retrieve(card)
		if err != nil {
			return xerrors.Errorf("retrieve %s: %w", name, err)
		}
		if err := wr.WriteHeader(&cpio.Header{
			Name: name,
			Mode: cpio.ModeSymlink | 0777,
			Size: int64(len(target)),
		}); err != nil {
			return err
		}
		_, err = wr.Write(target)
		return err

	default:
		mode := cpio.FileMode(0644)
		if card.IsExecutable() {
			mode = 0755
		}
		if err := wr.WriteHeader(&cpio.Header{
			Name: name,
			Mode: mode,
			Size: card.Size(),
		}); err != nil {
			return err
		}
		return content.Copy(card, func(p []byte) error {
			_, err := wr.Write(p)
			return err
		})
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
