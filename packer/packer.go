// Package packer implements the Packer state machine (spec.md §4.5): it
// orchestrates header emission, per-member content writing through RawPass
// or Lz4Pass, name interning via the NameTrie, and BSS+Index+Trailer
// emission on finish. Modeled on the teacher's squashfs.Writer, which plays
// the same role for a different on-disk format.
package packer

import (
	"fmt"
	"io"
	"time"

	"github.com/lippkg/lip"
	"github.com/lippkg/lip/internal/hasher"
	"github.com/lippkg/lip/internal/lz4pass"
	"github.com/lippkg/lip/internal/nametrie"
	"github.com/lippkg/lip/internal/rawpass"
	"golang.org/x/xerrors"
)

// Refill is a pull-style byte source for a regular file's content, used to
// drive either RawPass or Lz4Pass.
type Refill func(buf []byte) (n int, err error)

// FeatureFlags selects per-member encoding options for AddRegularFile.
type FeatureFlags lip.Flag

const (
	// Lz4Compressed routes the member's content through Lz4Pass instead of
	// RawPass.
	Lz4Compressed = FeatureFlags(lip.FlagLZ4Compressed)
	// Executable sets the executable hint bit on the member's FileCard.
	Executable = FeatureFlags(lip.FlagExecutable)
)

type state int

const (
	idle state = iota
	started
	finishing
	done
)

// Packer is a one-shot, single-threaded writer of one LIP archive. Its zero
// value is not usable; construct with New.
type Packer struct {
	w     io.Writer
	st    state
	err   error
	trie  *nametrie.Trie
	cards []lip.FileCard // indexed by nametrie.Handle
	pos   int64
}

// New returns an idle Packer. Call Start before any Add* method.
func New() *Packer {
	return &Packer{trie: nametrie.New()}
}

func toTicks(t time.Time) int64 {
	const ticksPerSecond = 10_000_000 // 100ns ticks
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100)
}

// Start installs the byte sink, emits the Header, and transitions the
// Packer from Idle to Started.
func (p *Packer) Start(w io.Writer) error {
	if p.st != idle {
		return xerrors.Errorf("packer: start called out of order: %w", lip.ErrMisuse)
	}
	if err := p.write(w, lip.DefaultHeader().Marshal()); err != nil {
		return p.poison(err)
	}
	p.w = w
	p.st = started
	return nil
}

func (p *Packer) write(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return lip.ErrShortWrite
	}
	p.pos += int64(n)
	return nil
}

func (p *Packer) poison(err error) error {
	p.err = err
	return err
}

func (p *Packer) checkWritable() error {
	if p.err != nil {
		return fmt.Errorf("packer: poisoned by prior error: %w: %w", p.err, lip.ErrMisuse)
	}
	if p.st != started {
		return xerrors.Errorf("packer: not in writing state: %w", lip.ErrMisuse)
	}
	return nil
}

// AddDirectory interns name and appends a FileCard with the directory type
// tag and begin==end==0.
func (p *Packer) AddDirectory(name string, mtime time.Time) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	p.intern(name, lip.FileCard{
		Info:  lip.FileInfo{Flag: lip.TypeDirectory},
		Mtime: toTicks(mtime),
	})
	return nil
}

// AddSymlink interns name, writes target as the member's content, and
// records its BLAKE2b-224 digest.
func (p *Packer) AddSymlink(name string, mtime time.Time, target []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	begin := p.pos
	if err := p.write(p.w, target); err != nil {
		return p.poison(err)
	}
	card := lip.FileCard{
		Info: lip.FileInfo{
			Flag:   lip.TypeSymlink,
			Digest: hasher.Sum224(target),
		},
		Mtime: toTicks(mtime),
		Begin: lip.Offset(begin),
		End:   lip.Offset(p.pos),
	}
	p.intern(name, card)
	return nil
}

// AddRegularFile interns name, selects RawPass or Lz4Pass per flags, drives
// the pass to exhaustion writing each produced slice to the sink, and
// records the resulting FileCard.
func (p *Packer) AddRegularFile(name string, mtime time.Time, refill Refill, flags FeatureFlags) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	begin := p.pos
	var info lip.FileInfo
	if flags&Lz4Compressed != 0 {
		lp := lz4pass.New(lz4pass.Refill(refill))
		for {
			chunk, err := lp.MakeAvailable()
			if err != nil {
				return p.poison(err)
			}
			if chunk == nil {
				break
			}
			if err := p.write(p.w, chunk); err != nil {
				return p.poison(err)
			}
		}
		info = lp.Stat()
	} else {
		rp := rawpass.New(rawpass.Refill(refill))
		for {
			chunk, err := rp.MakeAvailable()
			if err != nil {
				return p.poison(err)
			}
			if chunk == nil {
				break
			}
			if err := p.write(p.w, chunk); err != nil {
				return p.poison(err)
			}
		}
		info = rp.Stat()
	}
	info.Flag |= lip.TypeRegular
	if flags&Executable != 0 {
		info.Flag |= lip.FlagExecutable
	}
	card := lip.FileCard{
		Info:  info,
		Mtime: toTicks(mtime),
		Begin: lip.Offset(begin),
		End:   lip.Offset(p.pos),
	}
	p.intern(name, card)
	return nil
}

// intern assigns card the next trie handle for name, appending it to the
// card vector at that handle's index.
func (p *Packer) intern(name string, card lip.FileCard) {
	h := p.trie.Insert([]byte(name))
	if int(h) != len(p.cards) {
		// Handles are dense and assigned in append order; this would only
		// fire if nametrie's invariant were violated.
		panic("packer: nametrie handle out of sequence")
	}
	p.cards = append(p.cards, card)
}

// Finish emits zero-padding up to bss_start, the BSS region in trie
// (lexicographic) order while patching each card's NameOffset, the Index
// region in the same order, and the Trailer. It transitions the Packer
// through Finishing to Done.
func (p *Packer) Finish() error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	p.st = finishing

	bssStart := lip.AlignUp(p.pos)
	if err := p.padTo(bssStart); err != nil {
		return p.poison(err)
	}

	entries := p.trie.Enumerate()
	for _, e := range entries {
		nameOff := p.pos - bssStart
		p.cards[e.Handle].NameOffset = lip.Offset(nameOff)
		buf := make([]byte, len(e.Name)+1)
		copy(buf, e.Name)
		if err := p.write(p.w, buf); err != nil {
			return p.poison(err)
		}
	}

	indexStart := lip.AlignUp(p.pos)
	if err := p.padTo(indexStart); err != nil {
		return p.poison(err)
	}

	for _, e := range entries {
		if err := p.write(p.w, p.cards[e.Handle].Marshal()); err != nil {
			return p.poison(err)
		}
	}

	trailer := lip.Trailer{IndexStart: lip.Offset(indexStart), BSSStart: lip.Offset(bssStart)}
	if err := p.write(p.w, trailer.Marshal()); err != nil {
		return p.poison(err)
	}

	p.st = done
	return nil
}

func (p *Packer) padTo(target int64) error {
	n := target - p.pos
	if n <= 0 {
		return nil
	}
	return p.write(p.w, make([]byte, n))
}
