package mmapio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// FlushPolicy controls when writes to a read-write mapping are flushed to
// disk. The zero value is FlushNever. Policies are fixed at construction.
type FlushPolicy struct {
	kind     flushPolicyKind
	n        int64
	interval time.Duration
}

type flushPolicyKind uint8

const (
	flushNever flushPolicyKind = iota
	flushAlways
	flushEveryBytes
	flushEveryWrites
	flushInterval
)

// FlushNever disables implicit flushing; Flush must be called explicitly.
func FlushNever() FlushPolicy {
	return FlushPolicy{kind: flushNever}
}

// FlushManual is an alias of FlushNever for readability with the builder.
func FlushManual() FlushPolicy {
	return FlushNever()
}

// FlushAlways flushes after every write.
func FlushAlways() FlushPolicy {
	return FlushPolicy{kind: flushAlways}
}

// FlushEveryBytes flushes once at least n bytes have been written since the
// last flush. n <= 0 behaves like FlushNever.
func FlushEveryBytes(n int64) FlushPolicy {
	if n <= 0 {
		return FlushNever()
	}
	return FlushPolicy{kind: flushEveryBytes, n: n}
}

// FlushEveryWrites flushes once every w writes. w <= 0 behaves like
// FlushNever.
func FlushEveryWrites(w int64) FlushPolicy {
	if w <= 0 {
		return FlushNever()
	}
	return FlushPolicy{kind: flushEveryWrites, n: w}
}

// FlushInterval flushes dirty pages from a background goroutine every d.
// d <= 0 behaves like FlushNever.
func FlushInterval(d time.Duration) FlushPolicy {
	if d <= 0 {
		return FlushNever()
	}
	return FlushPolicy{kind: flushInterval, interval: d}
}

// FlushEveryMillis is FlushInterval with a millisecond count.
func FlushEveryMillis(ms int64) FlushPolicy {
	return FlushInterval(time.Duration(ms) * time.Millisecond)
}

func (p FlushPolicy) String() string {
	switch p.kind {
	case flushAlways:
		return "always"
	case flushEveryBytes:
		return fmt.Sprintf("every %d bytes", p.n)
	case flushEveryWrites:
		return fmt.Sprintf("every %d writes", p.n)
	case flushInterval:
		return fmt.Sprintf("every %s", p.interval)
	default:
		return "never"
	}
}

// timed reports whether the policy runs a background flusher.
func (p FlushPolicy) timed() bool {
	return p.kind == flushInterval
}

// pageRun is a contiguous run of dirty pages.
type pageRun struct {
	first uint32 // page index of the first dirty page
	count int
}

// flushTracker accounts for dirty state between flushes. Counter updates
// are lock-free; the dirty-page bitmap has its own mutex so the write path
// never touches the mapping's reader-writer coordinator.
type flushTracker struct {
	bytesSince  atomic.Int64
	writesSince atomic.Int64
	dirty       atomic.Bool
	flushCount  atomic.Int64
	lastFlush   atomic.Int64 // UnixNano, 0 until the first flush

	mu    sync.Mutex
	pages *roaring.Bitmap
}

func newFlushTracker() *flushTracker {
	return &flushTracker{pages: roaring.New()}
}

// recordWrite notes a write of n bytes at off and returns the running
// totals since the last reset.
func (t *flushTracker) recordWrite(off int64, n int, pageSize int) (bytes, writes int64) {
	bytes = t.bytesSince.Add(int64(n))
	writes = t.writesSince.Add(1)
	t.dirty.Store(true)

	if n > 0 {
		first := uint64(off) / uint64(pageSize)
		last := uint64(off+int64(n)-1) / uint64(pageSize)
		t.mu.Lock()
		// AddRange is exclusive of the upper bound.
		t.pages.AddRange(first, last+1)
		t.mu.Unlock()
	}
	return bytes, writes
}

// noteFlush resets the counters after a successful flush.
func (t *flushTracker) noteFlush(now time.Time) {
	t.bytesSince.Store(0)
	t.writesSince.Store(0)
	t.dirty.Store(false)
	t.flushCount.Add(1)
	t.lastFlush.Store(now.UnixNano())

	t.mu.Lock()
	t.pages.Clear()
	t.mu.Unlock()
}

// resetClean discards pending dirty state without counting a flush.
// A fresh region after resize starts clean.
func (t *flushTracker) resetClean() {
	t.bytesSince.Store(0)
	t.writesSince.Store(0)
	t.dirty.Store(false)

	t.mu.Lock()
	t.pages.Clear()
	t.mu.Unlock()
}

// dropPages removes the page range [first, last] from the dirty set after
// a partial flush covered it.
func (t *flushTracker) dropPages(first, last uint64) {
	t.mu.Lock()
	t.pages.RemoveRange(first, last+1)
	t.mu.Unlock()
}

// takeDirtyRuns drains the dirty-page set into contiguous runs.
func (t *flushTracker) takeDirtyRuns() []pageRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pages.IsEmpty() {
		return nil
	}
	var runs []pageRun
	it := t.pages.Iterator()
	cur := pageRun{}
	started := false
	for it.HasNext() {
		p := it.Next()
		switch {
		case !started:
			cur = pageRun{first: p, count: 1}
			started = true
		case p == cur.first+uint32(cur.count):
			cur.count++
		default:
			runs = append(runs, cur)
			cur = pageRun{first: p, count: 1}
		}
	}
	runs = append(runs, cur)
	t.pages.Clear()
	return runs
}

// dirtyPageCount returns the number of distinct dirty pages.
func (t *flushTracker) dirtyPageCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pages.GetCardinality()
}
