// Package hasher provides the incremental BLAKE2b-224 digest used for
// content-integrity checking of uncompressed members (spec.md §4.1).
package hasher

import (
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes: BLAKE2b configured for a 28-byte
// output, no key, no salt, no personalization.
const Size = 28

// Hasher is an incremental BLAKE2b-224 hash.
type Hasher struct {
	h hash.Hash
}

// New returns a fresh Hasher.
func New() *Hasher {
	h, err := blake2b.New(Size, nil)
	if err != nil {
		// Only invalid key length or invalid output size can cause this, and
		// both are compile-time constants here.
		panic(err)
	}
	return &Hasher{h: h}
}

// Update feeds bytes into the running digest.
func (h *Hasher) Update(p []byte) {
	h.h.Write(p) //nolint:errcheck // hash.Hash.Write never returns an error
}

// Finalize returns the 28-byte digest of everything written so far. It does
// not consume or reset the underlying state; callers that want a fresh
// digest afterwards should discard the Hasher and start a new one.
func (h *Hasher) Finalize() [Size]byte {
	var out [Size]byte
	copy(out[:], h.h.Sum(nil))
	return out
}

// Sum224 is a convenience one-shot BLAKE2b-224 digest of p, used for
// symlink targets where no incremental streaming is involved.
func Sum224(p []byte) [Size]byte {
	h := New()
	h.Update(p)
	return h.Finalize()
}
