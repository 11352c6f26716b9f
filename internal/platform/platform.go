package platform

import (
	"os"
	"sync"
)

// Prot selects the protection and sharing of a mapping.
type Prot int

const (
	// ProtRead maps the file shared and read-only.
	ProtRead Prot = iota
	// ProtReadWrite maps the file shared with read and write access.
	ProtReadWrite
	// ProtCopyOnWrite maps the file private; writes fault pages into
	// process-local copies and never reach the file.
	ProtCopyOnWrite
)

// Advice is a kernel hint about the expected access pattern.
type Advice int

const (
	// AdviceNormal is the default access pattern (no specific advice).
	AdviceNormal Advice = iota
	// AdviceRandom expects page references in random order.
	AdviceRandom
	// AdviceSequential expects page references in sequential order.
	AdviceSequential
	// AdviceWillNeed expects the range to be accessed in the near future.
	AdviceWillNeed
	// AdviceDontNeed expects the range to not be accessed in the near future.
	AdviceDontNeed
)

// MapOptions carries the optional knobs applied at map time.
type MapOptions struct {
	// HugePages requests the three-tier best-effort large-page strategy.
	HugePages bool
	// Populate pre-faults pages at map time on systems that support it.
	Populate bool
}

// Error wraps an OS-level mapping failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "platform: " + e.Op + ": " + e.Err.Error()
	}
	return "platform: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotMapped is returned when operating on an already unmapped region.
var ErrNotMapped = &Error{Op: "region not mapped"}

// Region is one mapped range of a file.
// It borrows the *os.File; the caller owns and closes it.
type Region struct {
	data []byte
	f    *os.File
	prot Prot
	// Windows view address (zero on Unix).
	addr uintptr
}

var pageSizeOnce = sync.OnceValue(os.Getpagesize)

// PageSize returns the system page size. Queried once per process.
func PageSize() int {
	return pageSizeOnce()
}

// alignRange expands [off, off+length) to page boundaries within [0, max).
func alignRange(off int64, length int, max int) (int, int) {
	ps := int64(PageSize())
	start := off - off%ps
	end := off + int64(length)
	if rem := end % ps; rem != 0 {
		end += ps - rem
	}
	if end > int64(max) {
		end = int64(max)
	}
	return int(start), int(end)
}

// Bytes returns the mapped byte slice. Nil after Unmap.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the mapped length in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Touch reads the first byte of every page in [off, off+length) to force
// resident population. Bounds are the caller's responsibility.
func (r *Region) Touch(off int64, length int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	start, end := alignRange(off, length, len(r.data))
	ps := PageSize()
	var acc byte
	for i := start; i < end; i += ps {
		acc ^= r.data[i]
	}
	touchSink = acc
	return nil
}

// touchSink defeats dead-store elimination of the page reads in Touch.
var touchSink byte
