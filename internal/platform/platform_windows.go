//go:build windows

package platform

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map establishes a mapping of the first length bytes of f.
//
// Large pages require SeLockMemoryPrivilege on Windows, which processes do
// not normally hold; the request falls through to a default mapping.
func Map(f *os.File, length int, prot Prot, opts MapOptions) (*Region, error) {
	if length <= 0 {
		return nil, &Error{Op: "map: invalid length"}
	}

	var page, access uint32
	switch prot {
	case ProtReadWrite:
		page = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	case ProtCopyOnWrite:
		page = windows.PAGE_WRITECOPY
		access = windows.FILE_MAP_COPY
	default:
		page = windows.PAGE_READONLY
		access = windows.FILE_MAP_READ
	}

	maxSizeHigh := uint32(uint64(length) >> 32)
	maxSizeLow := uint32(uint64(length))

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, page, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return nil, &Error{Op: "CreateFileMapping", Err: err}
	}
	// The view keeps the mapping object alive; the handle can go.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(length))
	if err != nil {
		return nil, &Error{Op: "MapViewOfFile", Err: err}
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)

	r := &Region{data: data, f: f, prot: prot, addr: addr}
	if opts.Populate {
		_ = r.prefetch(0, length)
	}
	return r, nil
}

// Unmap releases the mapping. Idempotent.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	err := windows.UnmapViewOfFile(r.addr)
	r.data = nil
	r.addr = 0
	if err != nil {
		return &Error{Op: "UnmapViewOfFile", Err: err}
	}
	return nil
}

// Flush durably publishes all dirty pages of the region to the file.
// FlushViewOfFile only queues the pages; FlushFileBuffers gives the same
// on-disk guarantee msync(MS_SYNC) does on Unix.
func (r *Region) Flush() error {
	if r.data == nil {
		return ErrNotMapped
	}
	if err := windows.FlushViewOfFile(r.addr, uintptr(len(r.data))); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
	}
	if r.prot == ProtReadWrite && r.f != nil {
		if err := windows.FlushFileBuffers(windows.Handle(r.f.Fd())); err != nil {
			return &Error{Op: "FlushFileBuffers", Err: err}
		}
	}
	return nil
}

// FlushAsync flushes the view without forcing file buffers to disk.
func (r *Region) FlushAsync() error {
	if r.data == nil {
		return ErrNotMapped
	}
	if err := windows.FlushViewOfFile(r.addr, uintptr(len(r.data))); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
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
	if err := windows.FlushViewOfFile(r.addr+uintptr(start), uintptr(end-start)); err != nil {
		return &Error{Op: "FlushViewOfFile range", Err: err}
	}
	if r.prot == ProtReadWrite && r.f != nil {
		if err := windows.FlushFileBuffers(windows.Handle(r.f.Fd())); err != nil {
			return &Error{Op: "FlushFileBuffers", Err: err}
		}
	}
	return nil
}

// Advise applies the will-need hint via PrefetchVirtualMemory; the other
// hints have no Windows equivalent and succeed as no-ops.
func (r *Region) Advise(off int64, length int, advice Advice) error {
	if r.data == nil {
		return ErrNotMapped
	}
	if advice == AdviceWillNeed {
		_ = r.prefetch(int(off), length)
	}
	return nil
}

// AdviseStrict reports hints the platform cannot honor instead of
// swallowing them.
func (r *Region) AdviseStrict(off int64, length int, advice Advice) error {
	if r.data == nil {
		return ErrNotMapped
	}
	switch advice {
	case AdviceNormal:
		return nil
	case AdviceWillNeed:
		if err := r.prefetch(int(off), length); err != nil {
			return &Error{Op: "PrefetchVirtualMemory", Err: err}
		}
		return nil
	default:
		return &Error{Op: "advise: no Windows equivalent"}
	}
}

func (r *Region) prefetch(off, length int) error {
	start, end := alignRange(int64(off), length, len(r.data))
	if start >= end {
		return nil
	}
	entry := windows.WIN32_MEMORY_RANGE_ENTRY{
		VirtualAddress: r.addr + uintptr(start),
		NumberOfBytes:  uintptr(end - start),
	}
	return windows.PrefetchVirtualMemory(windows.CurrentProcess(), 1, &entry, 0)
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
	if err := windows.VirtualLock(r.addr+uintptr(start), uintptr(end-start)); err != nil {
		return &Error{Op: "VirtualLock", Err: err}
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
	if err := windows.VirtualUnlock(r.addr+uintptr(start), uintptr(end-start)); err != nil {
		return &Error{Op: "VirtualUnlock", Err: err}
	}
	return nil
}
