// Package resource implements the shared Controller bounding what the
// library does in the background and how much address space it maps.
//
// The Controller governs three resource types:
//
//   - Mapped bytes: track and cap the total bytes mapped through one
//     controller (non-blocking, fail-fast)
//   - Background workers: limit concurrent background goroutines
//     (time-based flushers, change watchers)
//   - Flush IO: rate-limit background flush and snapshot throughput so
//     housekeeping does not starve foreground reads and writes
//
// A single controller may be shared by any number of mappings:
//
//	ctrl := resource.NewController(resource.Config{
//	    MappedBytesLimit:     1 << 32, // 4 GiB of address space
//	    MaxBackgroundWorkers: 4,
//	    FlushBytesPerSec:     64 << 20,
//	})
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully and become no-ops, so a
// controller is strictly optional and call sites need no nil checks.
package resource
