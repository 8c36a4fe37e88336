// Package lip defines the on-disk container format shared by the packer and
// reader halves of LIP: a read-optimized, single-file archive of a directory
// tree with O(log N) name lookup and zero-copy random access to any member.
package lip

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Epoch is the fixed magic value stored in every Header. It is not a format
// version and is never compared against a table of known revisions.
const Epoch = 584755

// HeaderSize is the size in bytes of the Header section at offset 0.
const HeaderSize = 8

// Magic is the 4-byte signature that begins every LIP archive.
var Magic = [4]byte{'L', 'I', 'P', 0}

// TrailerSize is the size in bytes of the Trailer section at the end of
// every archive.
const TrailerSize = 16

// FileCardSize is the fixed, load-bearing size of a FileCard record. The
// reader derives the member count from (index_end-index_start)/FileCardSize.
const FileCardSize = 64

// Type tags, the low 4 bits of a Flag word.
const (
	TypeRegular = Flag(iota)
	TypeDirectory
	TypeSymlink
)

const typeMask = Flag(0x0F)

// Flag is the per-member flag word: low 4 bits are the type tag, with
// additional bits for compression and permission hints.
type Flag uint32

const (
	// FlagLZ4Compressed marks a regular file whose data region holds LZ4
	// frames rather than raw bytes.
	FlagLZ4Compressed Flag = 0x10
	// FlagExecutable marks a regular file as carrying the executable bit.
	FlagExecutable Flag = 0x100
	// FlagReadonly is reserved: the bit is defined but no code path sets or
	// interprets it.
	FlagReadonly Flag = 0x200
)

// Type returns the member's type tag.
func (f Flag) Type() Flag { return f & typeMask }

// IsLZ4Compressed reports whether the compressed FileInfo view applies.
func (f Flag) IsLZ4Compressed() bool { return f&FlagLZ4Compressed != 0 }

// IsExecutable reports whether the executable hint bit is set.
func (f Flag) IsExecutable() bool { return f&FlagExecutable != 0 }

// Offset is a signed, file-relative byte offset. AlignUp rounds an offset up
// to the next 8-byte boundary, matching align_up(x, 8) = (x + 7) & ~7.
type Offset int64

// AlignUp rounds x up to the next multiple of 8.
func AlignUp(x int64) int64 {
	return (x + 7) &^ 7
}

// Header is the 8-byte section at offset 0 of every archive.
type Header struct {
	Magic [4]byte
	Epoch int32
}

// Marshal encodes the header as HeaderSize little-endian bytes.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Epoch))
	return buf
}

// Unmarshal decodes a HeaderSize-byte slice into h, validating the magic.
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return xerrors.Errorf("lip: short header: %w", ErrFormat)
	}
	copy(h.Magic[:], buf[0:4])
	h.Epoch = int32(binary.LittleEndian.Uint32(buf[4:8]))
	if h.Magic != Magic {
		return xerrors.Errorf("lip: bad magic %q: %w", h.Magic[:], ErrFormat)
	}
	return nil
}

// DefaultHeader returns the canonical Header every Packer emits.
func DefaultHeader() Header {
	return Header{Magic: Magic, Epoch: Epoch}
}

// FileInfo is the 32-byte (flag + 28-byte union) payload of a FileCard,
// discriminated by FlagLZ4Compressed. Uncompressed regular files and
// symlinks store a BLAKE2b-224 digest of their raw content; compressed
// regular files store the decoded (original) size instead.
type FileInfo struct {
	Flag Flag

	// Digest is valid when !Flag.IsLZ4Compressed(): BLAKE2b-224 of the raw
	// member bytes (the symlink target, for symlinks).
	Digest [28]byte

	// OriginalSize is valid when Flag.IsLZ4Compressed(): the sum of the
	// logical lengths of every decoded LZ4 frame in the member's data range.
	OriginalSize int64
}

const fileInfoSize = 32 // flag(4) + union(28)

func (fi FileInfo) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(fi.Flag))
	if fi.Flag.IsLZ4Compressed() {
		binary.LittleEndian.PutUint32(buf[4:8], 0) // reserved
		binary.LittleEndian.PutUint64(buf[8:16], uint64(fi.OriginalSize))
		for i := 16; i < fileInfoSize; i++ {
			buf[i] = 0
		}
	} else {
		copy(buf[4:fileInfoSize], fi.Digest[:])
	}
}

func (fi *FileInfo) unmarshal(buf []byte) {
	fi.Flag = Flag(binary.LittleEndian.Uint32(buf[0:4]))
	if fi.Flag.IsLZ4Compressed() {
		fi.OriginalSize = int64(binary.LittleEndian.Uint64(buf[8:16]))
		fi.Digest = [28]byte{}
	} else {
		copy(fi.Digest[:], buf[4:fileInfoSize])
		fi.OriginalSize = 0
	}
}

// FileCard is the exactly-64-byte fixed record describing one archive
// member. Field layout (little-endian):
//
//	[0..8)   name_offset : i64  (relative to bss_start on disk)
//	[8..40)  info        : FileInfo (flag + 28-byte union)
//	[40..48) mtime       : i64  (100ns ticks)
//	[48..56) begin       : i64  (absolute file offset)
//	[56..64) end         : i64  (absolute file offset)
type FileCard struct {
	NameOffset Offset
	Info       FileInfo
	Mtime      int64
	Begin      Offset
	End        Offset

	// ArcName is populated by the Reader from the BSS region; it is not part
	// of the on-disk FileCard record itself.
	ArcName []byte
}

// Marshal encodes the card as FileCardSize little-endian bytes.
func (c FileCard) Marshal() []byte {
	buf := make([]byte, FileCardSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.NameOffset))
	c.Info.marshal(buf[8:40])
	binary.LittleEndian.PutUint64(buf[40:48], uint64(c.Mtime))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(c.Begin))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(c.End))
	return buf
}

// Unmarshal decodes a FileCardSize-byte slice into c.
func (c *FileCard) Unmarshal(buf []byte) error {
	if len(buf) < FileCardSize {
		return xerrors.Errorf("lip: short file card: %w", ErrFormat)
	}
	c.NameOffset = Offset(binary.LittleEndian.Uint64(buf[0:8]))
	c.Info.unmarshal(buf[8:40])
	c.Mtime = int64(binary.LittleEndian.Uint64(buf[40:48]))
	c.Begin = Offset(binary.LittleEndian.Uint64(buf[48:56]))
	c.End = Offset(binary.LittleEndian.Uint64(buf[56:64]))
	return nil
}

// Type returns the member's type tag.
func (c FileCard) Type() Flag { return c.Info.Flag.Type() }

// IsExecutable reports the executable hint bit.
func (c FileCard) IsExecutable() bool { return c.Info.Flag.IsExecutable() }

// IsLZ4Compressed reports whether the member's data region holds LZ4 frames.
func (c FileCard) IsLZ4Compressed() bool { return c.Info.Flag.IsLZ4Compressed() }

// Size returns the member's logical (decoded) size: end-begin for
// directories/symlinks/uncompressed files, or OriginalSize for compressed
// regular files.
func (c FileCard) Size() int64 {
	if c.IsLZ4Compressed() {
		return c.Info.OriginalSize
	}
	return int64(c.End - c.Begin)
}

// Trailer is the final 16 bytes of every archive: [index_start, bss_start].
type Trailer struct {
	IndexStart Offset
	BSSStart   Offset
}

// Marshal encodes the trailer as TrailerSize little-endian bytes.
func (t Trailer) Marshal() []byte {
	buf := make([]byte, TrailerSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.IndexStart))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.BSSStart))
	return buf
}

// Unmarshal decodes a TrailerSize-byte slice into t.
func (t *Trailer) Unmarshal(buf []byte) error {
	if len(buf) < TrailerSize {
		return xerrors.Errorf("lip: short trailer: %w", ErrFormat)
	}
	t.IndexStart = Offset(binary.LittleEndian.Uint64(buf[0:8]))
	t.BSSStart = Offset(binary.LittleEndian.Uint64(buf[8:16]))
	return nil
}

// adjust converts a stored offset, interpreted as relative to origin, into
// an absolute pointer-equivalent index into a buffer based at base. This is
// the two-argument ptr::adjust formulation named in spec.md's design notes.
func adjust(base, origin, stored int64) int64 {
	return base + (stored - origin)
}

// Adjust is the exported form of adjust, used by reader to rebase
// index_start, loaded from the trailer, into an offset within the tail
// buffer. Stored name_offset values are already relative to bss_start and
// are used as tail-buffer offsets without it.
func Adjust(base, origin int64, stored Offset) int64 {
	return adjust(base, origin, int64(stored))
}
