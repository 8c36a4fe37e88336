// Package lz4pass implements the block-framed LZ4 output stage (spec.md
// §4.3) used for compressed regular files: double-buffered input, one
// [int32 little-endian compressed_length][payload] frame emitted per
// MakeAvailable call.
package lz4pass

import (
	"encoding/binary"

	lz4 "github.com/pierrec/lz4/v4"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/internal/lz4frame"
)

// BlockSize is the maximum number of source bytes consumed into a single
// input buffer (and therefore a single frame) per MakeAvailable call.
const BlockSize = 65536

// FrameHeaderSize is the size of the little-endian int32 compressed-length
// prefix that precedes each frame's payload.
const FrameHeaderSize = lz4frame.HeaderSize

// Refill is a pull-style byte source, identical in contract to rawpass.Refill.
type Refill func(buf []byte) (n int, err error)

// Pass is the Lz4Pass writer stage.
type Pass struct {
	refill Refill

	// bufs are the two round-robin 65536-byte input buffers, so the refill
	// that fills the next block never overwrites the block a caller may
	// still be holding a reference to from the previous MakeAvailable call.
	// lz4.CompressBlock is stateless per call: each block is compressed
	// independently, with no dictionary carried over from the prior block.
	bufs [2][BlockSize]byte
	cur  int

	hashTable []int

	out bytes65k // reused output buffer for the frame (header + payload)

	originalSize int64
}

// bytes65k is a growable byte buffer sized for one LZ4-compressed block.
type bytes65k = []byte

// New returns a Pass reading from refill.
func New(refill Refill) *Pass {
	return &Pass{
		refill:    refill,
		hashTable: make([]int, 1<<16),
		out:       make([]byte, FrameHeaderSize+lz4.CompressBlockBound(BlockSize)),
	}
}

// MakeAvailable consumes up to BlockSize source bytes into the current input
// buffer, compresses them into a single
// [int32 compressed_length][payload] frame, swaps input buffers, and
// returns a slice covering the frame. A 0-byte, nil-error result (with no
// trailing frame emitted) signals end-of-stream.
func (p *Pass) MakeAvailable() ([]byte, error) {
	dst := p.bufs[p.cur][:]
	n, err := p.refill(dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	block := dst[:n]
	p.originalSize += int64(n)
	p.cur = 1 - p.cur

	need := FrameHeaderSize + lz4.CompressBlockBound(n)
	if cap(p.out) < need {
		p.out = make([]byte, need)
	}
	p.out = p.out[:need]

	clen, err := lz4.CompressBlock(block, p.out[FrameHeaderSize:], p.hashTable)
	if err != nil {
		return nil, err
	}
	var header uint32
	if clen == 0 || clen >= n {
		// The block codec declines to compress very small or incompressible
		// blocks (it returns 0 rather than expand them). Store the block
		// raw and mark it with the frame's high bit, the same trick the
		// teacher's SquashFS writer uses for its own
		// SQUASHFS_COMPRESSED_BIT_BLOCK escape.
		p.out = p.out[:FrameHeaderSize+n]
		copy(p.out[FrameHeaderSize:], block)
		header = uint32(n) | lz4frame.RawBit
	} else {
		p.out = p.out[:FrameHeaderSize+clen]
		header = uint32(clen)
	}
	binary.LittleEndian.PutUint32(p.out[:FrameHeaderSize], header)
	return p.out, nil
}

// Stat returns a FileInfo carrying the running OriginalSize total, with
// lip.FlagLZ4Compressed already set in Flag; the Packer adds the type tag
// and the executable bit.
func (p *Pass) Stat() lip.FileInfo {
	return lip.FileInfo{Flag: lip.FlagLZ4Compressed, OriginalSize: p.originalSize}
}
