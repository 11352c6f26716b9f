package mmapio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/asotex/mmap-io/internal/platform"
	"github.com/asotex/mmap-io/resource"
	"github.com/dustin/go-humanize"
)

// Mode selects how a file is opened and mapped.
type Mode int

const (
	// ModeReadOnly maps the file shared and read-only.
	ModeReadOnly Mode = iota
	// ModeReadWrite maps the file shared with read and write access.
	ModeReadWrite
	// ModeCopyOnWrite maps the file private; writes fault pages into
	// process-local copies and never reach the file.
	ModeCopyOnWrite
)

func (m Mode) String() string {
	switch m {
	case ModeReadWrite:
		return "read-write"
	case ModeCopyOnWrite:
		return "copy-on-write"
	default:
		return "read-only"
	}
}

func (m Mode) prot() platform.Prot {
	switch m {
	case ModeReadWrite:
		return platform.ProtReadWrite
	case ModeCopyOnWrite:
		return platform.ProtCopyOnWrite
	default:
		return platform.ProtRead
	}
}

// writable reports whether writes through the mapping are permitted
// (read-write and copy-on-write).
func (m Mode) writable() bool {
	return m == ModeReadWrite || m == ModeCopyOnWrite
}

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

func (a Advice) platform() platform.Advice {
	switch a {
	case AdviceRandom:
		return platform.AdviceRandom
	case AdviceSequential:
		return platform.AdviceSequential
	case AdviceWillNeed:
		return platform.AdviceWillNeed
	case AdviceDontNeed:
		return platform.AdviceDontNeed
	default:
		return platform.AdviceNormal
	}
}

type lockedRange struct {
	off int64
	n   int
}

// MemoryMappedFile is one open file mapped into the address space.
//
// A MemoryMappedFile is safe for concurrent use: a reader-writer
// coordinator serializes writers against readers, so shared references
// suffice for both. Close unmaps the region, stops the background flusher
// if one is running, and closes the file descriptor.
type MemoryMappedFile struct {
	path   string
	mode   Mode
	policy FlushPolicy

	logger *Logger
	ctrl   *resource.Controller

	hugePages bool
	populate  bool
	advice    *Advice

	mu       sync.RWMutex
	f        *os.File
	region   *platform.Region
	length   int64
	closed   bool
	poisoned bool
	locked   []lockedRange

	tracker *flushTracker
	flusher *timeFlusher
}

// CreateRW creates (or truncates) the file at path to size bytes and maps
// it read-write. size must be positive.
func CreateRW(path string, size int64, opts ...Option) (*MemoryMappedFile, error) {
	return newMapping(path, ModeReadWrite, size, true, opts)
}

// OpenRO maps an existing file read-only. Empty files are rejected.
func OpenRO(path string, opts ...Option) (*MemoryMappedFile, error) {
	return newMapping(path, ModeReadOnly, 0, false, opts)
}

// OpenRW maps an existing file read-write. Empty files are rejected.
func OpenRW(path string, opts ...Option) (*MemoryMappedFile, error) {
	return newMapping(path, ModeReadWrite, 0, false, opts)
}

// OpenCOW maps an existing file copy-on-write. Writes land in
// process-private pages and are never propagated to the file.
func OpenCOW(path string, opts ...Option) (*MemoryMappedFile, error) {
	return newMapping(path, ModeCopyOnWrite, 0, false, opts)
}

func newMapping(path string, mode Mode, size int64, create bool, optFns []Option) (*MemoryMappedFile, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if create && size <= 0 {
		return nil, &ResizeError{Detail: "size must be positive"}
	}

	flag := os.O_RDONLY
	if mode == ModeReadWrite {
		flag = os.O_RDWR
	}
	if create {
		flag |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("mmapio: open %s: %w", path, err)
	}

	if create {
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmapio: truncate %s: %w", path, err)
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmapio: stat %s: %w", path, err)
		}
		size = st.Size()
		if size == 0 && mode != ModeCopyOnWrite {
			_ = f.Close()
			return nil, &ResizeError{Detail: "cannot map empty file"}
		}
	}

	if err := o.controller.AcquireMapped(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmapio: map %s: %w", path, err)
	}

	region, err := platform.Map(f, int(size), mode.prot(), platform.MapOptions{
		HugePages: o.hugePages,
		Populate:  o.populate,
	})
	if err != nil {
		o.controller.ReleaseMapped(size)
		_ = f.Close()
		return nil, fmt.Errorf("mmapio: map %s: %w", path, err)
	}

	m := &MemoryMappedFile{
		path:      path,
		mode:      mode,
		policy:    o.flushPolicy,
		logger:    o.logger,
		ctrl:      o.controller,
		hugePages: o.hugePages,
		populate:  o.populate,
		advice:    o.advice,
		f:         f,
		region:    region,
		length:    size,
		tracker:   newFlushTracker(),
	}

	if o.advice != nil {
		_ = region.Advise(0, int(size), o.advice.platform())
	}
	if o.touchHint == TouchEager {
		_ = region.Touch(0, int(size))
	}

	if m.policy.timed() && mode == ModeReadWrite {
		m.flusher = startTimeFlusher(m, m.policy.interval)
	}

	m.logger.Debug("mapped",
		"path", path,
		"mode", mode.String(),
		"size", humanize.IBytes(uint64(size)),
		"flush_policy", m.policy.String(),
	)
	return m, nil
}

// Len returns the current mapped length in bytes.
func (m *MemoryMappedFile) Len() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.length
}

// IsEmpty reports whether the mapping has zero length.
func (m *MemoryMappedFile) IsEmpty() bool {
	return m.Len() == 0
}

// Path returns the file path the mapping was opened with.
func (m *MemoryMappedFile) Path() string {
	return m.path
}

// Mode returns the access mode.
func (m *MemoryMappedFile) Mode() Mode {
	return m.mode
}

// PageSize returns the system page size.
func (m *MemoryMappedFile) PageSize() int {
	return platform.PageSize()
}

// usableLocked validates the mapping for use. Caller holds mu.
func (m *MemoryMappedFile) usableLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.poisoned {
		return &ResizeError{Detail: "mapping invalidated by failed resize; reopen the file"}
	}
	return nil
}

// ReadInto copies len(buf) bytes starting at off into buf. It performs an
// unsynchronized read in the sense that no writer guard is required; the
// internal shared lock still excludes concurrent writers for the duration
// of the copy.
func (m *MemoryMappedFile) ReadInto(off int64, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, len(buf), m.length); err != nil {
		return err
	}
	copy(buf, m.region.Bytes()[off:off+int64(len(buf))])
	return nil
}

// Slice returns a zero-copy view of [off, off+n). Only read-only and
// copy-on-write mappings hand out views; on read-write mappings another
// goroutine may mutate the range concurrently, which is an ordering
// contract this library does not promise — use ReadInto or AcquireRead
// instead. The returned slice is valid until Close or Resize.
func (m *MemoryMappedFile) Slice(off int64, n int) ([]byte, error) {
	if m.mode == ModeReadWrite {
		return nil, &InvalidModeError{Op: "Slice", Mode: m.mode}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return nil, err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return nil, err
	}
	return m.region.Bytes()[off : off+int64(n) : off+int64(n)], nil
}

// UpdateRegion copies data into the mapping at off. Permitted on
// read-write and copy-on-write mappings; copy-on-write writes stay in
// process-private pages. On read-write mappings the flush policy is
// consulted after the copy and may trigger a flush.
func (m *MemoryMappedFile) UpdateRegion(off int64, data []byte) error {
	if !m.mode.writable() {
		return &InvalidModeError{Op: "UpdateRegion", Mode: m.mode}
	}

	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := boundsCheck(off, len(data), m.length); err != nil {
		m.mu.Unlock()
		return err
	}
	copy(m.region.Bytes()[off:off+int64(len(data))], data)
	m.mu.Unlock()

	if m.mode != ModeReadWrite {
		return nil
	}
	return m.afterWrite(off, len(data))
}

// afterWrite feeds the flush controller and applies threshold policies.
// Called without mu held; Flush acquires the exclusive lock itself.
func (m *MemoryMappedFile) afterWrite(off int64, n int) error {
	bytes, writes := m.tracker.recordWrite(off, n, platform.PageSize())

	switch m.policy.kind {
	case flushAlways:
		return m.Flush()
	case flushEveryBytes:
		if bytes >= m.policy.n {
			return m.Flush()
		}
	case flushEveryWrites:
		if writes >= m.policy.n {
			return m.Flush()
		}
	}
	return nil
}

// Flush durably publishes all dirty bytes to the file. A no-op on
// read-only and copy-on-write mappings: there is nothing the file could
// learn from them.
func (m *MemoryMappedFile) Flush() error {
	if m.mode != ModeReadWrite {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *MemoryMappedFile) flushLocked() error {
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := m.region.Flush(); err != nil {
		return &FlushError{cause: err}
	}
	m.tracker.noteFlush(time.Now())
	return nil
}

// FlushRange durably publishes [off, off+n). Sub-page ranges are expanded
// to page boundaries before the OS call. A no-op on read-only and
// copy-on-write mappings.
func (m *MemoryMappedFile) FlushRange(off int64, n int) error {
	if m.mode != ModeReadWrite {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return err
	}
	if err := m.region.FlushRange(off, n); err != nil {
		return &FlushError{cause: err}
	}
	if n > 0 {
		ps := uint64(platform.PageSize())
		m.tracker.dropPages(uint64(off)/ps, uint64(off+int64(n)-1)/ps)
	}
	m.tracker.flushCount.Add(1)
	m.tracker.lastFlush.Store(time.Now().UnixNano())
	return nil
}

// backgroundFlush is the periodic flusher's work cycle: flush only the
// page runs dirtied since the last cycle. Errors are logged and retried on
// the next cycle; a caller-visible Flush remains the way to learn of
// durable failure.
func (m *MemoryMappedFile) backgroundFlush(ctx context.Context) {
	if !m.tracker.dirty.Load() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.poisoned {
		return
	}

	runs := m.tracker.takeDirtyRuns()
	ps := int64(platform.PageSize())

	var err error
	if len(runs) == 0 {
		err = m.region.Flush()
	}
	for _, r := range runs {
		off := int64(r.first) * ps
		n := int64(r.count) * ps
		if off >= m.length {
			continue
		}
		if off+n > m.length {
			n = m.length - off
		}
		if e := m.ctrl.AcquireFlushIO(ctx, int(n)); e != nil {
			err = e
			break
		}
		if e := m.region.FlushRange(off, int(n)); e != nil {
			err = e
			break
		}
	}

	if err != nil {
		m.logger.Warn("background flush failed", "path", m.path, "error", err)
		// Whole-region flush next cycle picks up whatever was lost here.
		m.tracker.dirty.Store(true)
		return
	}
	m.tracker.noteFlush(time.Now())
}

// Resize remaps the file at a new length. Only read-write mappings
// resize. Pending dirty bytes are flushed first; the old region is
// unmapped, the file truncated or grown, and a fresh region mapped.
// Growing leaves the new tail zeroed. If the fresh mapping cannot be
// established the mapping becomes unusable and every subsequent operation
// returns a ResizeError.
func (m *MemoryMappedFile) Resize(newSize int64) error {
	if m.mode != ModeReadWrite {
		return &InvalidModeError{Op: "Resize", Mode: m.mode}
	}
	if newSize <= 0 {
		return &ResizeError{Detail: "new size must be positive"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	oldSize := m.length
	if newSize == oldSize {
		return nil
	}

	if err := m.ctrl.AcquireMapped(newSize); err != nil {
		return &ResizeError{Detail: "reserve mapped bytes", cause: err}
	}

	// The mapping is still intact up to here; failures stay recoverable.
	if err := m.region.Flush(); err != nil {
		m.ctrl.ReleaseMapped(newSize)
		return &ResizeError{Detail: "flush before remap", cause: err}
	}

	if err := m.region.Unmap(); err != nil {
		m.ctrl.ReleaseMapped(newSize)
		m.poisoned = true
		m.logger.LogResize(m.path, oldSize, newSize, err)
		return &ResizeError{Detail: "unmap old region", cause: err}
	}

	if err := m.f.Truncate(newSize); err != nil {
		m.ctrl.ReleaseMapped(newSize)
		m.poisoned = true
		m.logger.LogResize(m.path, oldSize, newSize, err)
		return &ResizeError{Detail: "set file length", cause: err}
	}

	region, err := platform.Map(m.f, int(newSize), m.mode.prot(), platform.MapOptions{
		HugePages: m.hugePages,
		Populate:  m.populate,
	})
	if err != nil {
		m.ctrl.ReleaseMapped(newSize)
		m.poisoned = true
		m.logger.LogResize(m.path, oldSize, newSize, err)
		return &ResizeError{Detail: "map fresh region", cause: err}
	}

	m.region = region
	m.length = newSize
	m.locked = nil
	if m.advice != nil {
		_ = region.Advise(0, int(newSize), m.advice.platform())
	}
	m.ctrl.ReleaseMapped(oldSize)
	m.tracker.resetClean()
	m.logger.LogResize(m.path, oldSize, newSize, nil)
	return nil
}

// TouchPages reads one byte of every page to force resident population.
func (m *MemoryMappedFile) TouchPages() error {
	return m.TouchPagesRange(0, int(m.Len()))
}

// TouchPagesRange touches the pages covering [off, off+n).
func (m *MemoryMappedFile) TouchPagesRange(off int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return err
	}
	if err := m.region.Touch(off, n); err != nil {
		return fmt.Errorf("mmapio: touch %s: %w", m.path, err)
	}
	return nil
}

// Advise applies a kernel access-pattern hint to the whole region.
// Unsupported hints degrade to successful no-ops.
func (m *MemoryMappedFile) Advise(a Advice) error {
	return m.AdviseRange(0, int(m.Len()), a)
}

// AdviseRange applies a hint to [off, off+n), expanded to page boundaries.
func (m *MemoryMappedFile) AdviseRange(off int64, n int, a Advice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return err
	}
	if err := m.region.Advise(off, n, a.platform()); err != nil {
		return &AdviceError{cause: err}
	}
	return nil
}

// AdviseStrict applies a hint to the whole region and reports hints the
// platform cannot honor instead of swallowing them.
func (m *MemoryMappedFile) AdviseStrict(a Advice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := m.region.AdviseStrict(0, int(m.length), a.platform()); err != nil {
		return &AdviceError{cause: err}
	}
	return nil
}

// Lock pins the whole region in physical memory.
func (m *MemoryMappedFile) Lock() error {
	return m.LockRange(0, int(m.Len()))
}

// LockRange pins the pages covering [off, off+n). Pinned pages are the
// caller's responsibility; whatever is still pinned at Close is unpinned
// best-effort.
func (m *MemoryMappedFile) LockRange(off int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return err
	}
	if err := m.region.Lock(off, n); err != nil {
		return &LockError{cause: err}
	}
	m.locked = append(m.locked, lockedRange{off: off, n: n})
	return nil
}

// Unlock unpins the whole region.
func (m *MemoryMappedFile) Unlock() error {
	return m.UnlockRange(0, int(m.Len()))
}

// UnlockRange unpins the pages covering [off, off+n).
func (m *MemoryMappedFile) UnlockRange(off int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return err
	}
	if err := m.region.Unlock(off, n); err != nil {
		return &UnlockError{cause: err}
	}
	for i, lr := range m.locked {
		if lr.off == off && lr.n == n {
			m.locked = append(m.locked[:i], m.locked[i+1:]...)
			break
		}
	}
	return nil
}

// Stats is a point-in-time snapshot of the mapping's flush accounting.
type Stats struct {
	Len         int64
	PageSize    int
	Mode        Mode
	DirtyBytes  int64
	DirtyWrites int64
	DirtyPages  uint64
	FlushCount  int64
	LastFlush   time.Time
}

func (s Stats) String() string {
	return fmt.Sprintf("%s mapping, %s, %s dirty over %d pages, %d flushes",
		s.Mode,
		humanize.IBytes(uint64(s.Len)),
		humanize.IBytes(uint64(s.DirtyBytes)),
		s.DirtyPages,
		s.FlushCount,
	)
}

// Stats returns the current flush accounting.
func (m *MemoryMappedFile) Stats() Stats {
	var last time.Time
	if ns := m.tracker.lastFlush.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Len:         m.Len(),
		PageSize:    platform.PageSize(),
		Mode:        m.mode,
		DirtyBytes:  m.tracker.bytesSince.Load(),
		DirtyWrites: m.tracker.writesSince.Load(),
		DirtyPages:  m.tracker.dirtyPageCount(),
		FlushCount:  m.tracker.flushCount.Load(),
		LastFlush:   last,
	}
}

// Close drains the mapping: the background flusher (if any) is stopped and
// joined, pending dirty bytes are flushed when the policy implies implicit
// flushing, still-pinned pages are unpinned best-effort, the region is
// unmapped and the file descriptor closed. Idempotent.
func (m *MemoryMappedFile) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	flusher := m.flusher
	m.flusher = nil
	m.mu.Unlock()

	// Join outside the lock; the worker's final cycle takes it.
	if flusher != nil {
		flusher.stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if m.mode == ModeReadWrite && !m.poisoned &&
		m.policy.kind != flushNever && m.tracker.dirty.Load() {
		if err := m.region.Flush(); err != nil && firstErr == nil {
			firstErr = &FlushError{cause: err}
		}
	}

	for _, lr := range m.locked {
		_ = m.region.Unlock(lr.off, lr.n)
	}
	m.locked = nil

	if !m.poisoned {
		if err := m.region.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.ctrl.ReleaseMapped(m.length)

	if err := m.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	m.logger.Debug("closed", "path", m.path)
	return firstErr
}
