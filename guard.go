package mmapio

import "sync"

// ReadGuard is an immutable view into a mapping that holds the shared lock
// for its lifetime, excluding writers. Close releases the lock; the view
// must not be used afterwards.
type ReadGuard struct {
	m    *MemoryMappedFile
	data []byte
	off  int64
	once sync.Once
}

// AcquireRead takes the shared lock and returns a guard over [off, off+n).
// Unlike Slice this is permitted on read-write mappings: the held lock
// excludes writers, so the view cannot be mutated underneath the caller.
func (m *MemoryMappedFile) AcquireRead(off int64, n int) (*ReadGuard, error) {
	m.mu.RLock()
	if err := m.usableLocked(); err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	return &ReadGuard{
		m:    m,
		data: m.region.Bytes()[off : off+int64(n) : off+int64(n)],
		off:  off,
	}, nil
}

// Bytes returns the guarded view. Callers must not write through it.
func (g *ReadGuard) Bytes() []byte {
	return g.data
}

// Offset returns the view's offset within the mapping.
func (g *ReadGuard) Offset() int64 {
	return g.off
}

// Close releases the shared lock. Idempotent.
func (g *ReadGuard) Close() error {
	g.once.Do(func() {
		g.data = nil
		g.m.mu.RUnlock()
	})
	return nil
}

// WriteGuard is a mutable view into a mapping that holds the exclusive
// lock for its lifetime. At most one write guard is live per mapping;
// readers are excluded while it is held.
//
// Closing the guard releases the lock and, on read-write mappings, reports
// the guarded length to the flush controller, which may trigger a flush
// per policy. Calling Flush on the same mapping while the guard is held
// deadlocks; that is a documented contract, not enforced at runtime.
type WriteGuard struct {
	m    *MemoryMappedFile
	data []byte
	off  int64
	once sync.Once
	err  error
}

// AcquireWrite takes the exclusive lock and returns a mutable guard over
// [off, off+n). Permitted on read-write and copy-on-write mappings.
func (m *MemoryMappedFile) AcquireWrite(off int64, n int) (*WriteGuard, error) {
	if !m.mode.writable() {
		return nil, &InvalidModeError{Op: "AcquireWrite", Mode: m.mode}
	}
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	return &WriteGuard{
		m:    m,
		data: m.region.Bytes()[off : off+int64(n) : off+int64(n)],
		off:  off,
	}, nil
}

// Bytes returns the guarded mutable view.
func (g *WriteGuard) Bytes() []byte {
	return g.data
}

// Offset returns the view's offset within the mapping.
func (g *WriteGuard) Offset() int64 {
	return g.off
}

// Close releases the exclusive lock and accounts the write. Idempotent;
// the first call's error is retained.
func (g *WriteGuard) Close() error {
	g.once.Do(func() {
		n := len(g.data)
		off := g.off
		g.data = nil
		g.m.mu.Unlock()
		if g.m.mode == ModeReadWrite && n > 0 {
			g.err = g.m.afterWrite(off, n)
		}
	})
	return g.err
}
