//go:build unix

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// Map establishes a mapping of the first length bytes of f.
func Map(f *os.File, length int, prot Prot, opts MapOptions) (*Region, error) {
	if length <= 0 {
		return nil, &Error{Op: "map: invalid length"}
	}

	mprot := unix.PROT_READ
	flags := unix.MAP_SHARED
	switch prot {
	case ProtReadWrite:
		mprot |= unix.PROT_WRITE
	case ProtCopyOnWrite:
		mprot |= unix.PROT_WRITE
		flags = unix.MAP_PRIVATE
	}
	flags |= populateFlag(opts.Populate)

	data, err := mapTiered(int(f.Fd()), length, mprot, flags, opts.HugePages)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}

	return &Region{data: data, f: f, prot: prot}, nil
}

// Unmap releases the mapping. Idempotent.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if err != nil {
		return &Error{Op: "munmap", Err: err}
	}
	return nil
}

// Flush durably publishes all dirty pages of the region to the file.
func (r *Region) Flush() error {
	if r.data == nil {
		return ErrNotMapped
	}
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return &Error{Op: "msync", Err: err}
	}
	return nil
}

// FlushAsync schedules a flush without waiting for completion.
func (r *Region) FlushAsync() error {
	if r.data == nil {
		return ErrNotMapped
	}
	if err := unix.Msync(r.data, unix.MS_ASYNC); err != nil {
		return &Error{Op: "msync async", Err: err}
	}
	return nil
}

// FlushRange flushes [off, off+length), expanded to page boundaries.
func (r *Region) FlushRange(off int64, length int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	start, end := alignRange(off, length, len(r.data))
	if start >= end {
		return nil
	}
	if err := unix.Msync(r.data[start:end], unix.MS_SYNC); err != nil {
		return &Error{Op: "msync range", Err: err}
	}
	return nil
}

// Advise applies a kernel access hint to [off, off+length).
// An EINVAL from the kernel is swallowed: the hint is advisory and some
// kernels reject hints on locked or special ranges.
func (r *Region) Advise(off int64, length int, advice Advice) error {
	return r.advise(off, length, advice, false)
}

// AdviseStrict is Advise without the EINVAL tolerance.
func (r *Region) AdviseStrict(off int64, length int, advice Advice) error {
	return r.advise(off, length, advice, true)
}

func (r *Region) advise(off int64, length int, advice Advice, strict bool) error {
	if r.data == nil {
		return ErrNotMapped
	}
	var adv int
	switch advice {
	case AdviceRandom:
		adv = unix.MADV_RANDOM
	case AdviceSequential:
		adv = unix.MADV_SEQUENTIAL
	case AdviceWillNeed:
		adv = unix.MADV_WILLNEED
	case AdviceDontNeed:
		adv = unix.MADV_DONTNEED
	default:
		adv = unix.MADV_NORMAL
	}
	start, end := alignRange(off, length, len(r.data))
	if start >= end {
		return nil
	}
	err := unix.Madvise(r.data[start:end], adv)
	if err == unix.EINVAL && !strict {
		return nil
	}
	if err != nil {
		return &Error{Op: "madvise", Err: err}
	}
	return nil
}

// Lock pins [off, off+length) in physical memory.
func (r *Region) Lock(off int64, length int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	start, end := alignRange(off, length, len(r.data))
	if start >= end {
		return nil
	}
	if err := unix.Mlock(r.data[start:end]); err != nil {
		return &Error{Op: "mlock", Err: err}
	}
	return nil
}

// Unlock releases pages pinned by Lock.
func (r *Region) Unlock(off int64, length int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	start, end := alignRange(off, length, len(r.data))
	if start >= end {
		return nil
	}
	if err := unix.Munlock(r.data[start:end]); err != nil {
		return &Error{Op: "munlock", Err: err}
	}
	return nil
}
