package mmapio

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed mapping.
	ErrClosed = errors.New("mmapio: mapping is closed")
)

// InvalidModeError indicates an operation the mapping's access mode forbids.
type InvalidModeError struct {
	Op   string
	Mode Mode
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("mmapio: %s not permitted on %s mapping", e.Op, e.Mode)
}

// OutOfBoundsError indicates an offset/length pair outside the mapping.
type OutOfBoundsError struct {
	Offset int64
	Length int
	Total  int64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("mmapio: range [%d, %d) out of bounds (len %d)", e.Offset, e.Offset+int64(e.Length), e.Total)
}

// MisalignedError indicates an atomic view offset that is not a multiple of
// the cell size.
type MisalignedError struct {
	Required int
	Offset   int64
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("mmapio: offset %d not aligned to %d bytes", e.Offset, e.Required)
}

// FlushError indicates that the OS refused to publish dirty pages.
//
// The platform error can be accessed via errors.Unwrap.
type FlushError struct {
	cause error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("mmapio: flush failed: %v", e.cause)
}

func (e *FlushError) Unwrap() error { return e.cause }

// ResizeError indicates a failed or forbidden resize. A resize that fails
// after the old region was unmapped poisons the mapping: every subsequent
// operation returns a ResizeError until the file is reopened.
type ResizeError struct {
	Detail string
	cause  error
}

func (e *ResizeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("mmapio: resize failed: %s: %v", e.Detail, e.cause)
	}
	return fmt.Sprintf("mmapio: resize failed: %s", e.Detail)
}

func (e *ResizeError) Unwrap() error { return e.cause }

// AdviceError indicates an advice request the platform rejected, or, through
// AdviseStrict, a hint the platform could not honor.
type AdviceError struct {
	cause error
}

func (e *AdviceError) Error() string {
	return fmt.Sprintf("mmapio: advice failed: %v", e.cause)
}

func (e *AdviceError) Unwrap() error { return e.cause }

// LockError indicates a failed attempt to pin pages in physical memory.
type LockError struct {
	cause error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("mmapio: lock failed: %v", e.cause)
}

func (e *LockError) Unwrap() error { return e.cause }

// UnlockError indicates a failed attempt to unpin pages.
type UnlockError struct {
	cause error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("mmapio: unlock failed: %v", e.cause)
}

func (e *UnlockError) Unwrap() error { return e.cause }

// WatchError indicates the change watcher could not be started.
type WatchError struct {
	Detail string
	cause  error
}

func (e *WatchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("mmapio: watch failed: %s: %v", e.Detail, e.cause)
	}
	return fmt.Sprintf("mmapio: watch failed: %s", e.Detail)
}

func (e *WatchError) Unwrap() error { return e.cause }

// boundsCheck validates [off, off+n) against total.
func boundsCheck(off int64, n int, total int64) error {
	if off < 0 || n < 0 || off+int64(n) > total {
		return &OutOfBoundsError{Offset: off, Length: n, Total: total}
	}
	return nil
}
