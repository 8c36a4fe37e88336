package reader_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/packer"
	"github.com/lippkg/lip/reader"
)

func buildArchive(t *testing.T, build func(p *packer.Packer)) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	p := packer.New()
	if err := p.Start(&buf); err != nil {
		t.Fatal(err)
	}
	build(p)
	if err := p.Finish(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func preadOf(buf *bytes.Buffer) reader.Pread {
	b := buf.Bytes()
	return func(dst []byte, off int64) (int, error) {
		if off < 0 || off > int64(len(b)) {
			return 0, errors.New("out of range")
		}
		return copy(dst, b[off:]), nil
	}
}

func TestFindHitAndMiss(t *testing.T) {
	buf := buildArchive(t, func(p *packer.Packer) {
		now := time.Unix(0, 0)
		must(t, p.AddDirectory("a", now))
		must(t, p.AddDirectory("b", now))
		must(t, p.AddSymlink("b/link", now, []byte("../a")))
	})

	r, err := reader.Open(preadOf(buf), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Find("missing"); ok {
		t.Fatal("Find(missing) reported a hit")
	}
	card, ok := r.Find("b/link")
	if !ok {
		t.Fatal("Find(b/link) missed")
	}
	if card.Type() != lip.TypeSymlink {
		t.Fatalf("type = %v, want symlink", card.Type())
	}
}

func TestIterMatchesLen(t *testing.T) {
	buf := buildArchive(t, func(p *packer.Packer) {
		now := time.Unix(0, 0)
		for _, n := range []string{"z", "a", "m"} {
			must(t, p.AddDirectory(n, now))
		}
	})
	r, err := reader.Open(preadOf(buf), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 3 || len(r.Iter()) != 3 {
		t.Fatalf("Len()=%d Iter()=%d, want 3", r.Len(), len(r.Iter()))
	}
	var prev string
	for _, c := range r.Iter() {
		if string(c.ArcName) < prev {
			t.Fatalf("Iter() not ascending: %q after %q", c.ArcName, prev)
		}
		prev = string(c.ArcName)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	if _, err := reader.Open(func([]byte, int64) (int, error) { return 0, nil }, 4); !errors.Is(err, lip.ErrFormat) {
		t.Fatalf("Open() on a too-small file = %v, want ErrFormat", err)
	}
}

func TestOpenRejectsBadTrailer(t *testing.T) {
	buf := buildArchive(t, func(p *packer.Packer) {})
	b := buf.Bytes()
	// Corrupt bss_start to all 0xff bytes (-1), which lies outside the file.
	corrupt := make([]byte, len(b))
	copy(corrupt, b)
	for i := len(corrupt) - 8; i < len(corrupt); i++ {
		corrupt[i] = 0xff
	}
	cbuf := bytes.NewBuffer(corrupt)
	if _, err := reader.Open(preadOf(cbuf), int64(len(corrupt))); !errors.Is(err, lip.ErrFormat) {
		t.Fatalf("Open() with corrupt trailer = %v, want ErrFormat", err)
	}
}

func TestRetrieveSmallMemberSucceeds(t *testing.T) {
	buf := buildArchive(t, func(p *packer.Packer) {
		now := time.Unix(0, 0)
		must(t, p.AddSymlink("link", now, []byte("target")))
	})
	r, err := reader.Open(preadOf(buf), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	card, _ := r.Find("link")
	content := reader.NewContent(preadOf(buf))
	if _, err := content.Retrieve(card); err != nil {
		t.Fatalf("Retrieve(small symlink) = %v, want nil", err)
	}
}

// TestRetrieveOversizedMemberFails matches the original implementation's
// own "long content" test case (tests/test_content.cc): a 70000-byte member
// exceeds the 64 KiB retrieve bound and must be rejected.
func TestRetrieveOversizedMemberFails(t *testing.T) {
	data := make([]byte, 70000)
	buf := buildArchive(t, func(p *packer.Packer) {
		now := time.Unix(0, 0)
		pos := 0
		refill := func(dst []byte) (int, error) {
			if pos >= len(data) {
				return 0, nil
			}
			n := copy(dst, data[pos:])
			pos += n
			return n, nil
		}
		must(t, p.AddRegularFile("huge", now, refill, 0))
	})
	r, err := reader.Open(preadOf(buf), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	card, ok := r.Find("huge")
	if !ok {
		t.Fatal("find(huge) missed")
	}
	content := reader.NewContent(preadOf(buf))
	if _, err := content.Retrieve(card); !errors.Is(err, lip.ErrMisuse) {
		t.Fatalf("Retrieve(oversized member) = %v, want ErrMisuse", err)
	}
}

func TestCopyRawMultiBlock(t *testing.T) {
	data := make([]byte, 150000)
	for i := range data {
		data[i] = byte(i)
	}
	buf := buildArchive(t, func(p *packer.Packer) {
		now := time.Unix(0, 0)
		pos := 0
		refill := func(dst []byte) (int, error) {
			if pos >= len(data) {
				return 0, nil
			}
			n := copy(dst, data[pos:])
			pos += n
			return n, nil
		}
		must(t, p.AddRegularFile("big", now, refill, 0))
	})
	r, err := reader.Open(preadOf(buf), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	card, ok := r.Find("big")
	if !ok {
		t.Fatal("find(big) missed")
	}
	content := reader.NewContent(preadOf(buf))
	var out []byte
	if err := content.Copy(card, func(p []byte) error {
		out = append(out, p...)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("copy mismatch (%d vs %d bytes)", len(out), len(data))
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
