package mmapio

// Segment is a stable (owner, offset, length) window into a mapping,
// meant to be handed out as an independent view that outlives a single
// call. It holds a reference to the owner but the owner does not know its
// segments, so destruction order is well-defined.
//
// Bounds are revalidated lazily on every access: a segment taken before a
// shrinking Resize starts failing with OutOfBounds instead of touching
// unmapped memory, and a segment of a closed mapping fails with ErrClosed.
type Segment struct {
	m   *MemoryMappedFile
	off int64
	n   int
}

// Segment returns a window over [off, off+n). The range is validated now
// and again on each access.
func (m *MemoryMappedFile) Segment(off int64, n int) (*Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return nil, err
	}
	if err := boundsCheck(off, n, m.length); err != nil {
		return nil, err
	}
	return &Segment{m: m, off: off, n: n}, nil
}

// Owner returns the mapping this segment windows into.
func (s *Segment) Owner() *MemoryMappedFile { return s.m }

// Offset returns the segment's offset within the mapping.
func (s *Segment) Offset() int64 { return s.off }

// Len returns the segment's length in bytes.
func (s *Segment) Len() int { return s.n }

// rangeCheck validates a relative range against the segment window.
func (s *Segment) rangeCheck(rel int64, n int) error {
	if rel < 0 || n < 0 || rel+int64(n) > int64(s.n) {
		return &OutOfBoundsError{Offset: rel, Length: n, Total: int64(s.n)}
	}
	return nil
}

// ReadInto copies len(buf) bytes starting at the segment-relative offset
// rel into buf.
func (s *Segment) ReadInto(rel int64, buf []byte) error {
	if err := s.rangeCheck(rel, len(buf)); err != nil {
		return err
	}
	return s.m.ReadInto(s.off+rel, buf)
}

// UpdateRegion copies data into the segment at the relative offset rel.
func (s *Segment) UpdateRegion(rel int64, data []byte) error {
	if err := s.rangeCheck(rel, len(data)); err != nil {
		return err
	}
	return s.m.UpdateRegion(s.off+rel, data)
}

// Slice returns a zero-copy view of the whole segment. Subject to the same
// mode rule as the mapping's Slice: read-write owners refuse it.
func (s *Segment) Slice() ([]byte, error) {
	return s.m.Slice(s.off, s.n)
}

// Flush durably publishes the segment's range.
func (s *Segment) Flush() error {
	return s.m.FlushRange(s.off, s.n)
}
