package hasher_test

import (
	"encoding/hex"
	"testing"

	"github.com/lippkg/lip/internal/hasher"
)

func TestSum224KnownValue(t *testing.T) {
	// Matches spec.md §8 scenario 3: BLAKE2b-224("../tmp").
	got := hasher.Sum224([]byte("../tmp"))
	want := "12e0296f8b9dba8f7f0be0614c67d108c160cba9ff496e256d98b1c2"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("Sum224 = %x, want %s", got, want)
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	h := hasher.New()
	h.Update(data[:10])
	h.Update(data[10:])
	got := h.Finalize()
	want := hasher.Sum224(data)
	if got != want {
		t.Fatalf("incremental = %x, one-shot = %x", got, want)
	}
}

func TestEmptyInput(t *testing.T) {
	a := hasher.Sum224(nil)
	b := hasher.New().Finalize()
	if a != b {
		t.Fatalf("Sum224(nil) = %x, New().Finalize() = %x", a, b)
	}
}
