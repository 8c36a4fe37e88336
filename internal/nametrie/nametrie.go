// Package nametrie implements the ordered associative container from
// archive-name byte strings to dense integer handles that the Packer uses
// as the single source of truth for on-disk member order (spec.md §4.4).
package nametrie

import "sort"

// Handle is a dense integer identifying one inserted name, assigned in
// insertion order. The Packer's FileCard vector is indexed by Handle.
type Handle int

type node struct {
	children map[byte]*node
	handle   Handle
	terminal bool
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

// Trie is an ordered byte-keyed trie. Names are stored byte-exact; no
// normalization is performed. Duplicate insertions are not defined
// behavior.
type Trie struct {
	root  *node
	count int
}

// New returns an empty Trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

// Insert assigns the next available Handle (in insertion order, 0-based)
// to name and returns it.
func (t *Trie) Insert(name []byte) Handle {
	n := t.root
	for _, b := range name {
		child, ok := n.children[b]
		if !ok {
			child = newNode()
			n.children[b] = child
		}
		n = child
	}
	h := Handle(t.count)
	t.count++
	n.terminal = true
	n.handle = h
	return h
}

// Len returns the number of names inserted.
func (t *Trie) Len() int { return t.count }

// Entry is one (name, handle) pair yielded by Enumerate, in ascending
// lexicographic order of name bytes.
type Entry struct {
	Name   []byte
	Handle Handle
}

// Enumerate yields every inserted (name, handle) pair in ascending
// lexicographic order of name bytes. The Packer relies on this ordering for
// both BSS and Index emission.
func (t *Trie) Enumerate() []Entry {
	entries := make([]Entry, 0, t.count)
	var walk func(n *node, prefix []byte)
	walk = func(n *node, prefix []byte) {
		if n.terminal {
			name := make([]byte, len(prefix))
			copy(name, prefix)
			entries = append(entries, Entry{Name: name, Handle: n.handle})
		}
		if len(n.children) == 0 {
			return
		}
		keys := make([]byte, 0, len(n.children))
		for b := range n.children {
			keys = append(keys, b)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, b := range keys {
			walk(n.children[b], append(prefix, b))
		}
	}
	walk(t.root, nil)
	return entries
}
