// Package mmapio provides safe, concurrent, zero-copy access to
// memory-mapped files with configurable durability semantics.
//
// # Quick Start
//
// Create a writable mapping, write through it, and make the bytes durable:
//
//	m, _ := mmapio.CreateRW("cache.bin", 4096)
//	defer m.Close()
//
//	_ = m.UpdateRegion(0, []byte("hello"))
//	_ = m.Flush()
//
// Open the same file read-only elsewhere:
//
//	ro, _ := mmapio.OpenRO("cache.bin")
//	defer ro.Close()
//
//	buf := make([]byte, 5)
//	_ = ro.ReadInto(0, buf)
//
// # Builder
//
// The fluent builder exposes the full configuration surface:
//
//	m, err := mmapio.NewBuilder("telemetry.ring").
//	    Mode(mmapio.ModeReadWrite).
//	    Size(1 << 20).
//	    FlushPolicy(mmapio.FlushInterval(50 * time.Millisecond)).
//	    TouchHint(mmapio.TouchEager).
//	    HugePages(true).
//	    Create()
//
// # Access Modes
//
// A mapping is read-only, read-write, or copy-on-write. Read-write mappings
// deliberately refuse Slice: handing out an unsynchronized view into memory
// another goroutine may be writing promises ordering the library cannot
// deliver. Use ReadInto for unsynchronized reads, or AcquireRead /
// AcquireWrite for lock-holding guards. Copy-on-write mappings accept
// writes into process-private pages; the file never changes and flushing
// is a no-op.
//
// # Durability
//
// Writes become visible to fresh mappings of the same file only after a
// successful Flush or FlushRange. The flush policy automates this: flush on
// every write, after a byte or write-count threshold, or periodically from
// a background flusher. The background flusher tracks dirty pages and
// flushes only the page runs that changed.
//
// # Concurrency
//
// A mapping is safe for concurrent use. Internally a single reader-writer
// coordinator serializes writers against readers; atomic cell views
// (AtomicUint32, AtomicUint64) bypass the coordinator and provide their
// standard cross-thread ordering.
package mmapio
