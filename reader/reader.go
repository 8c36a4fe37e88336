// Package reader implements the Reader (Index) half of LIP (spec.md §4.6):
// construction from a pread-capable source plus file size, binary-search
// lookup, ordered iteration, and streaming/in-memory content retrieval.
// Modeled on the teacher's squashfs.Reader, which plays the same role for a
// different on-disk format.
package reader

import (
	"bytes"
	"encoding/binary"
	"sort"

	lz4 "github.com/pierrec/lz4/v4"
	"golang.org/x/xerrors"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/internal/lz4frame"
)

// Pread is the random-access byte source a Reader and Content are built on:
// it reads len(buf) bytes starting at off, behaving like io.ReaderAt.
type Pread func(buf []byte, off int64) (n int, err error)

// Reader holds the parsed tail region ([bss_start, file_size)) of one LIP
// archive for its entire lifetime. All FileCard.ArcName slices point into
// this buffer.
type Reader struct {
	pread    Pread
	fileSize int64
	bssStart int64
	cards    []lip.FileCard // ascending archive-name order
}

// Open parses the trailer at fileSize-16, loads the tail region via pread,
// and rebases every FileCard's name into the loaded buffer.
func Open(pread Pread, fileSize int64) (*Reader, error) {
	if fileSize < lip.HeaderSize+lip.TrailerSize {
		return nil, xerrors.Errorf("reader: file too small (%d bytes): %w", fileSize, lip.ErrFormat)
	}

	var trailerBuf [lip.TrailerSize]byte
	if err := preadFull(pread, trailerBuf[:], fileSize-lip.TrailerSize); err != nil {
		return nil, err
	}
	var trailer lip.Trailer
	if err := trailer.Unmarshal(trailerBuf[:]); err != nil {
		return nil, err
	}
	indexStart, bssStart := int64(trailer.IndexStart), int64(trailer.BSSStart)
	if bssStart < lip.HeaderSize || bssStart > fileSize || indexStart < bssStart || indexStart > fileSize {
		return nil, xerrors.Errorf("reader: trailer out of range (index_start=%d bss_start=%d file_size=%d): %w",
			indexStart, bssStart, fileSize, lip.ErrFormat)
	}
	if indexStart%8 != 0 || bssStart%8 != 0 {
		return nil, xerrors.Errorf("reader: misaligned section start: %w", lip.ErrFormat)
	}

	tail := make([]byte, fileSize-bssStart)
	if err := preadFull(pread, tail, bssStart); err != nil {
		return nil, err
	}

	indexEnd := fileSize - lip.TrailerSize
	indexLen := indexEnd - indexStart
	if indexLen%lip.FileCardSize != 0 {
		return nil, xerrors.Errorf("reader: index length %d not a multiple of %d: %w",
			indexLen, lip.FileCardSize, lip.ErrFormat)
	}
	n := int(indexLen / lip.FileCardSize)

	firstOff := lip.Adjust(0, bssStart, lip.Offset(indexStart))
	cards := make([]lip.FileCard, n)
	for i := 0; i < n; i++ {
		off := firstOff + int64(i)*lip.FileCardSize
		var c lip.FileCard
		if err := c.Unmarshal(tail[off : off+lip.FileCardSize]); err != nil {
			return nil, err
		}
		if c.IsLZ4Compressed() && c.Type() != lip.TypeRegular {
			return nil, xerrors.Errorf("reader: compressed flag on non-regular member: %w", lip.ErrFormat)
		}
		nameOff := int64(c.NameOffset) // name_offset is stored already relative to bss_start
		if nameOff < 0 || nameOff >= int64(len(tail)) {
			return nil, xerrors.Errorf("reader: name offset %d out of range: %w", nameOff, lip.ErrFormat)
		}
		end := bytes.IndexByte(tail[nameOff:], 0)
		if end < 0 {
			return nil, xerrors.Errorf("reader: unterminated archive name at offset %d: %w", nameOff, lip.ErrFormat)
		}
		c.ArcName = tail[nameOff : nameOff+int64(end)]
		cards[i] = c
	}

	return &Reader{pread: pread, fileSize: fileSize, bssStart: bssStart, cards: cards}, nil
}

func preadFull(pread Pread, buf []byte, off int64) error {
	n, err := pread(buf, off)
	if err != nil {
		return xerrors.Errorf("reader: pread at %d: %w", off, err)
	}
	if n != len(buf) {
		return xerrors.Errorf("reader: short read at %d (got %d want %d): %w", off, n, len(buf), lip.ErrShortRead)
	}
	return nil
}

// Len returns the number of members in the archive.
func (r *Reader) Len() int { return len(r.cards) }

// Empty reports whether the archive has zero members.
func (r *Reader) Empty() bool { return len(r.cards) == 0 }

// At returns the i-th card in ascending archive-name order.
func (r *Reader) At(i int) lip.FileCard { return r.cards[i] }

// Iter returns every card in ascending archive-name (storage) order.
func (r *Reader) Iter() []lip.FileCard { return r.cards }

// Find performs a binary search by archive name and reports whether a
// matching member exists. A miss is a normal result, not an error.
func (r *Reader) Find(name string) (lip.FileCard, bool) {
	nb := []byte(name)
	i := sort.Search(len(r.cards), func(i int) bool {
		return bytes.Compare(r.cards[i].ArcName, nb) >= 0
	})
	if i < len(r.cards) && bytes.Equal(r.cards[i].ArcName, nb) {
		return r.cards[i], true
	}
	return lip.FileCard{}, false
}

// maxRetrieveSize bounds Content.Retrieve: members above this size must be
// streamed with Copy instead of materialized in memory. Anchored on the
// original implementation's own retrieve buffer, which is sized at 64 KiB
// (src/lip.cc) and rejects anything larger (tests/test_content.cc's "long
// content" case retrieves a 70000-byte member and expects it to fail).
const maxRetrieveSize = 64 << 10

// Content streams or materializes the data region of one FileCard.
type Content struct {
	pread Pread
}

// NewContent returns a Content reading through pread, the same source used
// to construct the owning Reader.
func NewContent(pread Pread) Content {
	return Content{pread: pread}
}

// blockSize is the chunk size used when streaming uncompressed content.
const blockSize = 65536

// Copy streams the full decoded content of card to sink, in order. For
// uncompressed members this is a sequence of pread calls forwarded
// directly; for LZ4-compressed members each frame is pread, decoded, and
// forwarded.
func (c Content) Copy(card lip.FileCard, sink func(p []byte) error) error {
	if card.IsLZ4Compressed() {
		return c.copyLZ4(card, sink)
	}
	return c.copyRaw(card, sink)
}

func (c Content) copyRaw(card lip.FileCard, sink func(p []byte) error) error {
	begin, end := int64(card.Begin), int64(card.End)
	buf := make([]byte, blockSize)
	for begin < end {
		n := int64(blockSize)
		if remaining := end - begin; remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if err := preadFull(c.pread, chunk, begin); err != nil {
			return err
		}
		if err := sink(chunk); err != nil {
			return err
		}
		begin += n
	}
	return nil
}

func (c Content) copyLZ4(card lip.FileCard, sink func(p []byte) error) error {
	cursor, end := int64(card.Begin), int64(card.End)
	var hdr [lz4frame.HeaderSize]byte
	// payload and decode are never aliased to each other: a raw-stored
	// frame sinks payload directly, and a compressed frame is always
	// decoded into decode, so a compressed frame following a full-size raw
	// frame never has UncompressBlock read and write the same backing
	// array.
	var payload []byte
	var decode []byte
	for cursor < end {
		if err := preadFull(c.pread, hdr[:], cursor); err != nil {
			return err
		}
		cursor += lz4frame.HeaderSize
		word := binary.LittleEndian.Uint32(hdr[:])
		raw := word&lz4frame.RawBit != 0
		length := int64(word & lz4frame.LengthMask)
		if cursor+length > end {
			return xerrors.Errorf("reader: truncated lz4 frame at %d: %w", cursor, lip.ErrFormat)
		}
		if cap(payload) < int(length) {
			payload = make([]byte, length)
		}
		payload = payload[:length]
		if err := preadFull(c.pread, payload, cursor); err != nil {
			return err
		}
		cursor += length

		if raw {
			if err := sink(payload); err != nil {
				return err
			}
			continue
		}

		if cap(decode) < blockSize {
			decode = make([]byte, blockSize)
		}
		decode = decode[:cap(decode)]
		n, err := lz4.UncompressBlock(payload, decode)
		if err != nil {
			return xerrors.Errorf("reader: lz4 decode at %d: %w", cursor, err)
		}
		decode = decode[:n]
		if err := sink(decode); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve materializes the full decoded content of card in memory. It
// fails for members whose decoded size exceeds maxRetrieveSize; callers
// handling arbitrary regular files must use Copy instead.
func (c Content) Retrieve(card lip.FileCard) ([]byte, error) {
	if card.Size() > maxRetrieveSize {
		return nil, xerrors.Errorf("reader: member of size %d exceeds retrieve bound %d: %w",
			card.Size(), maxRetrieveSize, lip.ErrMisuse)
	}
	out := make([]byte, 0, card.Size())
	err := c.Copy(card, func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
