package rawpass_test

import (
	"bytes"
	"testing"

	"github.com/lippkg/lip/internal/hasher"
	"github.com/lippkg/lip/internal/rawpass"
)

func TestPassThroughAndDigest(t *testing.T) {
	data := make([]byte, rawpass.BlockSize*2+123)
	for i := range data {
		data[i] = byte(i)
	}
	pos := 0
	refill := func(buf []byte) (int, error) {
		if pos >= len(data) {
			return 0, nil
		}
		n := copy(buf, data[pos:])
		pos += n
		return n, nil
	}

	p := rawpass.New(refill)
	var out []byte
	for {
		chunk, err := p.MakeAvailable()
		if err != nil {
			t.Fatal(err)
		}
		if chunk == nil {
			break
		}
		out = append(out, chunk...)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("pass-through output mismatches input (%d vs %d bytes)", len(out), len(data))
	}
	if got, want := p.Stat().Digest, hasher.Sum224(data); got != want {
		t.Fatalf("digest = %x, want %x", got, want)
	}
}

func TestEmptyStream(t *testing.T) {
	p := rawpass.New(func(buf []byte) (int, error) { return 0, nil })
	chunk, err := p.MakeAvailable()
	if err != nil || chunk != nil {
		t.Fatalf("MakeAvailable() = (%v, %v), want (nil, nil)", chunk, err)
	}
	if got, want := p.Stat().Digest, hasher.Sum224(nil); got != want {
		t.Fatalf("digest of empty stream = %x, want %x", got, want)
	}
}
