// This file implements the fluent builder API for creating and configuring
// mappings. The builder is immutable - each method returns a new builder
// with the updated configuration, so partially configured builders can be
// shared and specialized safely.
package mmapio

import (
	"github.com/asotex/mmap-io/resource"
)

// Builder is an immutable fluent builder for mappings.
//
// Example:
//
//	m, err := mmapio.NewBuilder("cache.bin").
//	    Mode(mmapio.ModeReadWrite).
//	    Size(1 << 20).
//	    FlushPolicy(mmapio.FlushEveryBytes(64 << 10)).
//	    TouchHint(mmapio.TouchEager).
//	    Create()
type Builder struct {
	path        string
	mode        Mode
	size        int64
	flushPolicy FlushPolicy
	touchHint   TouchHint
	hugePages   bool
	advice      *Advice
	populate    bool
	logger      *Logger
	controller  *resource.Controller
}

// NewBuilder starts a builder for the file at path. The default
// configuration is a read-write mapping with manual flushing.
func NewBuilder(path string) Builder {
	return Builder{
		path:        path,
		mode:        ModeReadWrite,
		flushPolicy: FlushNever(),
	}
}

// Mode sets the access mode.
func (b Builder) Mode(mode Mode) Builder {
	b.mode = mode
	return b
}

// Size sets the target file length for Create. Must be at least 1.
func (b Builder) Size(size int64) Builder {
	b.size = size
	return b
}

// FlushPolicy sets when writes are flushed to disk. Fixed for the
// mapping's lifetime.
func (b Builder) FlushPolicy(p FlushPolicy) Builder {
	b.flushPolicy = p
	return b
}

// TouchHint sets page prewarming at construction.
func (b Builder) TouchHint(h TouchHint) Builder {
	b.touchHint = h
	return b
}

// HugePages enables the three-tier best-effort large-page strategy.
func (b Builder) HugePages(enabled bool) Builder {
	b.hugePages = enabled
	return b
}

// Advice applies a kernel access-pattern hint once after mapping.
func (b Builder) Advice(a Advice) Builder {
	b.advice = &a
	return b
}

// Populate pre-faults pages at map time on systems that support it.
func (b Builder) Populate(enabled bool) Builder {
	b.populate = enabled
	return b
}

// Logger configures structured logging.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Controller attaches a shared resource controller.
func (b Builder) Controller(c *resource.Controller) Builder {
	b.controller = c
	return b
}

func (b Builder) options() []Option {
	opts := []Option{
		WithFlushPolicy(b.flushPolicy),
		WithTouchHint(b.touchHint),
		WithHugePages(b.hugePages),
		WithPopulate(b.populate),
	}
	if b.advice != nil {
		opts = append(opts, WithAdvice(*b.advice))
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.controller != nil {
		opts = append(opts, WithController(b.controller))
	}
	return opts
}

// Create creates (or truncates) the file at the configured size and maps
// it. Creation requires the read-write mode.
func (b Builder) Create() (*MemoryMappedFile, error) {
	if b.mode != ModeReadWrite {
		return nil, &InvalidModeError{Op: "Create", Mode: b.mode}
	}
	return newMapping(b.path, b.mode, b.size, true, b.options())
}

// Open maps the existing file in the configured mode.
func (b Builder) Open() (*MemoryMappedFile, error) {
	return newMapping(b.path, b.mode, 0, false, b.options())
}
