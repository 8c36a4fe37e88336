// Package walk implements the directory-traversal "archive driver" named in
// spec.md §1 as an external collaborator contract: it walks a source tree
// depth-first and feeds a packer.Packer. Modeled on the teacher's
// internal/build cp/directory-walking helpers.
package walk

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/lippkg/lip/packer"
)

// CompressPredicate decides whether a regular file, given its archive-
// relative name and size, should be packed with LZ4 compression.
type CompressPredicate func(name string, size int64) bool

// CompressNone never compresses.
func CompressNone(string, int64) bool { return false }

// Options controls how Tree drives the Packer.
type Options struct {
	// ShouldCompress selects the feature flags passed to AddRegularFile. A
	// nil value is equivalent to CompressNone.
	ShouldCompress CompressPredicate
}

// Tree walks root depth-first, in ascending filename order at each
// directory level, adding every directory, symlink, and regular file it
// finds to p using an archive name relative to root (root itself is not
// added). Directories are visited, and added, before their children.
func Tree(p *packer.Packer, root string, opts Options) error {
	should := opts.ShouldCompress
	if should == nil {
		should = CompressNone
	}
	return walkDir(p, root, "", should)
}

func walkDir(p *packer.Packer, absDir, arcDir string, should CompressPredicate) error {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return xerrors.Errorf("walk: read dir %s: %w", absDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if err := validateComponent(entry.Name()); err != nil {
			return xerrors.Errorf("walk: %s: %w", filepath.Join(absDir, entry.Name()), err)
		}
		absPath := filepath.Join(absDir, entry.Name())
		arcName := entry.Name()
		if arcDir != "" {
			arcName = arcDir + "/" + entry.Name()
		}

		info, err := os.Lstat(absPath)
		if err != nil {
			return xerrors.Errorf("walk: lstat %s: %w", absPath, err)
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if err := addSymlink(p, absPath, arcName, info); err != nil {
				return err
			}

		case info.IsDir():
			if err := p.AddDirectory(arcName, info.ModTime()); err != nil {
				return xerrors.Errorf("walk: add directory %s: %w", arcName, err)
			}
			if err := walkDir(p, absPath, arcName, should); err != nil {
				return err
			}

		case info.Mode().IsRegular():
			if err := addRegularFile(p, absPath, arcName, info, should); err != nil {
				return err
			}

		default:
			return xerrors.Errorf("walk: %s: unsupported file type %v", absPath, info.Mode())
		}
	}
	return nil
}

func addSymlink(p *packer.Packer, absPath, arcName string, info os.FileInfo) error {
	target, err := os.Readlink(absPath)
	if err != nil {
		return xerrors.Errorf("walk: readlink %s: %w", absPath, err)
	}
	if err := p.AddSymlink(arcName, info.ModTime(), []byte(target)); err != nil {
		return xerrors.Errorf("walk: add symlink %s: %w", arcName, err)
	}
	return nil
}

func addRegularFile(p *packer.Packer, absPath, arcName string, info os.FileInfo, should CompressPredicate) error {
	f, err := os.Open(absPath)
	if err != nil {
		return xerrors.Errorf("walk: open %s: %w", absPath, err)
	}
	defer f.Close()

	var flags packer.FeatureFlags
	if isExecutable(info) {
		flags |= packer.Executable
	}
	if should(arcName, info.Size()) {
		flags |= packer.Lz4Compressed
	}

	refill := func(buf []byte) (int, error) {
		n, err := f.Read(buf)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	if err := p.AddRegularFile(arcName, info.ModTime(), refill, flags); err != nil {
		return xerrors.Errorf("walk: add regular file %s: %w", arcName, err)
	}
	return nil
}

// validateComponent rejects a path component that the BSS name encoding
// cannot represent (NUL, which terminates a stored name) or that would make
// an archive name ambiguous to resolve (a literal ".." component).
func validateComponent(name string) error {
	if strings.IndexByte(name, 0) >= 0 {
		return xerrors.Errorf("name %q contains a NUL byte", name)
	}
	if name == ".." {
		return xerrors.Errorf("name %q is a parent-directory reference", name)
	}
	return nil
}

// isExecutable reports whether any of the owner/group/other execute bits
// are set, mirroring the unix.S_IX* checks the teacher uses elsewhere.
func isExecutable(info os.FileInfo) bool {
	const executeBits = unix.S_IXUSR | unix.S_IXGRP | unix.S_IXOTH
	return uint32(info.Mode().Perm())&executeBits != 0
}
