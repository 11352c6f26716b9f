package mmapio

import (
	"github.com/asotex/mmap-io/resource"
)

// TouchHint controls page prewarming at construction time.
type TouchHint int

const (
	// TouchNever leaves page population to first access (default).
	TouchNever TouchHint = iota
	// TouchEager reads one byte of every page at construction, taking the
	// page faults up front.
	TouchEager
	// TouchLazy defers population; callers prewarm with TouchPages when it
	// suits them.
	TouchLazy
)

func (h TouchHint) String() string {
	switch h {
	case TouchEager:
		return "eager"
	case TouchLazy:
		return "lazy"
	default:
		return "never"
	}
}

type options struct {
	flushPolicy FlushPolicy
	touchHint   TouchHint
	hugePages   bool
	advice      *Advice
	populate    bool
	logger      *Logger
	controller  *resource.Controller
}

func defaultOptions() options {
	return options{
		flushPolicy: FlushNever(),
		logger:      NoopLogger(),
	}
}

// Option configures mapping construction.
//
// Options exist to keep the constructor surface small; the fluent Builder
// covers the same knobs for callers that prefer it.
type Option func(*options)

// WithFlushPolicy configures when writes are flushed to disk.
// The policy is fixed for the lifetime of the mapping.
func WithFlushPolicy(p FlushPolicy) Option {
	return func(o *options) {
		o.flushPolicy = p
	}
}

// WithTouchHint configures page prewarming at construction.
func WithTouchHint(h TouchHint) Option {
	return func(o *options) {
		o.touchHint = h
	}
}

// WithHugePages enables the three-tier best-effort large-page strategy.
// Mapping never fails because large pages are unavailable.
func WithHugePages(enabled bool) Option {
	return func(o *options) {
		o.hugePages = enabled
	}
}

// WithAdvice applies a kernel access-pattern hint once after mapping.
func WithAdvice(a Advice) Option {
	return func(o *options) {
		o.advice = &a
	}
}

// WithPopulate pre-faults pages at map time on systems that support it.
func WithPopulate(enabled bool) Option {
	return func(o *options) {
		o.populate = enabled
	}
}

// WithLogger configures structured logging. If l is nil, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithController attaches a shared resource controller governing mapped
// bytes, background worker slots and background flush throughput.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}
