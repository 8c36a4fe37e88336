package lip

import "errors"

// Sentinel errors shared by packer and reader, matching the error taxonomy
// of spec.md §7.
var (
	// ErrShortWrite is returned when a write sink accepted fewer bytes than
	// offered.
	ErrShortWrite = errors.New("lip: short write")

	// ErrShortRead is returned when a pread source returned fewer bytes than
	// requested.
	ErrShortRead = errors.New("lip: short read")

	// ErrFormat is returned for any structural violation of the archive
	// format: bad magic, misaligned section pointers, an index region whose
	// length is not a multiple of FileCardSize, a name offset outside the
	// BSS region, a truncated LZ4 frame, or a compressed flag set on a
	// non-regular-file member.
	ErrFormat = errors.New("lip: invalid format")

	// ErrMisuse is returned for API misuse: operating on a Packer after
	// Finish, or after it has been poisoned by a prior I/O failure, or
	// calling Retrieve on a member too large to materialize in memory.
	ErrMisuse = errors.New("lip: misuse")

	// ErrNotFound is returned by nothing in this package directly; Find
	// reports a lookup miss by returning ok=false, since a miss is a normal
	// result, not an error (spec.md §7).
	ErrNotFound = errors.New("lip: member not found")
)
