package nametrie_test

import (
	"testing"

	"github.com/lippkg/lip/internal/nametrie"
)

func TestInsertionOrderHandles(t *testing.T) {
	tr := nametrie.New()
	names := []string{"tmp/self", "tmp", "bin/sh", "etc"}
	var handles []nametrie.Handle
	for _, n := range names {
		handles = append(handles, tr.Insert([]byte(n)))
	}
	for i, h := range handles {
		if int(h) != i {
			t.Fatalf("handle for %q = %d, want %d (insertion order)", names[i], h, i)
		}
	}
	if tr.Len() != len(names) {
		t.Fatalf("Len() = %d, want %d", tr.Len(), len(names))
	}
}

func TestEnumerateAscendingLexicographic(t *testing.T) {
	tr := nametrie.New()
	names := []string{"tmp/self", "tmp", "bin/sh", "etc", "bin"}
	for _, n := range names {
		tr.Insert([]byte(n))
	}
	entries := tr.Enumerate()
	want := []string{"bin", "bin/sh", "etc", "tmp", "tmp/self"}
	if len(entries) != len(want) {
		t.Fatalf("Enumerate() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if string(e.Name) != want[i] {
			t.Fatalf("entries[%d] = %q, want %q", i, e.Name, want[i])
		}
	}
}

func TestEnumerateHandlesMatchInsert(t *testing.T) {
	tr := nametrie.New()
	aHandle := tr.Insert([]byte("z"))
	bHandle := tr.Insert([]byte("a"))
	entries := tr.Enumerate()
	// Ascending order puts "a" (bHandle) first, then "z" (aHandle).
	if entries[0].Handle != bHandle || entries[1].Handle != aHandle {
		t.Fatalf("entries = %+v, want handle order [%d %d]", entries, bHandle, aHandle)
	}
}

func TestEmptyTrie(t *testing.T) {
	tr := nametrie.New()
	if got := tr.Enumerate(); len(got) != 0 {
		t.Fatalf("Enumerate() on empty trie = %v, want empty", got)
	}
}
