// Package lz4frame defines the on-disk frame header shared by the packer's
// Lz4Pass output stage and the reader's compressed Content decode path:
// each frame is [int32 little-endian length][payload], spec.md §4.3/§4.7.
package lz4frame

// HeaderSize is the size of the little-endian length prefix.
const HeaderSize = 4

// RawBit, when set in a frame's length field, marks the payload as stored
// raw (not LZ4-block-compressed). This is LIP's own escape for blocks the
// LZ4 block codec declines to shrink (very small or incompressible blocks),
// mirroring the teacher's SquashFS writer's SQUASHFS_COMPRESSED_BIT_BLOCK
// trick of stealing a high bit of a length field for the same purpose.
const RawBit = uint32(1) << 31

// LengthMask isolates the payload length from a frame header word.
const LengthMask = RawBit - 1
