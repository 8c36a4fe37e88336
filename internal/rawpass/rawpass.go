// Package rawpass implements the pass-through output stage (spec.md §4.2)
// used for uncompressed regular files and symlinks: it forwards whatever
// bytes the refill source produces while hashing them incrementally.
package rawpass

import (
	"github.com/lippkg/lip"
	"github.com/lippkg/lip/internal/hasher"
)

// BlockSize is the maximum number of bytes pulled from the refill source per
// MakeAvailable call.
const BlockSize = 65536

// Refill is a pull-style byte source: it returns up to len(buf) bytes; 0
// bytes with a nil error signals end-of-stream; 0 bytes with a non-nil error
// signals failure.
type Refill func(buf []byte) (n int, err error)

// Pass is the RawPass writer stage.
type Pass struct {
	refill Refill
	h      *hasher.Hasher
	buf    [BlockSize]byte
}

// New returns a Pass reading from refill.
func New(refill Refill) *Pass {
	return &Pass{refill: refill, h: hasher.New()}
}

// MakeAvailable pulls at most BlockSize bytes from the refill source, feeds
// them to the internal hasher, and returns a slice pointing at those bytes.
// A 0-byte, nil-error result signals end-of-stream.
func (p *Pass) MakeAvailable() ([]byte, error) {
	n, err := p.refill(p.buf[:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	chunk := p.buf[:n]
	p.h.Update(chunk)
	return chunk, nil
}

// Stat returns a FileInfo carrying the digest of everything hashed so far.
// The Flag field is left zero; the Packer sets type/feature bits.
func (p *Pass) Stat() lip.FileInfo {
	return lip.FileInfo{Digest: p.h.Finalize()}
}
