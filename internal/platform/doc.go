// Package platform wraps the OS memory-mapping primitives behind a small
// capability surface: map/unmap, flush, advise, lock and page touching.
//
// # Platform Support
//
// The package provides a unified API across platforms:
//
//   - Unix (Linux, macOS, BSD): mmap(2), msync(2), madvise(2), mlock(2)
//   - Windows: CreateFileMapping/MapViewOfFile, FlushViewOfFile (+
//     FlushFileBuffers for durability parity), VirtualLock,
//     PrefetchVirtualMemory for the will-need hint
//
// Hints that have no equivalent on the host degrade to successful no-ops;
// callers that need to know use the Strict variants.
//
// # Huge Pages
//
// Large-page support is best effort and attempted in three tiers at map
// time: an explicit large-page mapping, a standard mapping plus a
// transparent-huge-page hint, and finally a plain mapping. Mapping never
// fails because large pages are unavailable.
//
// # Sub-page Flushes
//
// FlushRange expands sub-page ranges to page boundaries before issuing the
// OS call; the kernel flushes whole pages regardless, so the expansion only
// makes the request well-formed.
package platform
