package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMappedBytesExceeded is returned when a new mapping would push the
// total mapped bytes over the configured limit.
var ErrMappedBytesExceeded = errors.New("resource: mapped bytes limit exceeded")

// Config holds resource limits.
type Config struct {
	// MappedBytesLimit is the hard cap on total bytes mapped through this
	// controller. If 0, mappings are only tracked, not limited.
	MappedBytesLimit int64

	// MaxBackgroundWorkers is the maximum number of concurrent background
	// goroutines (flushers, watchers). If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// FlushBytesPerSec is the maximum background flush and snapshot
	// throughput. If 0, unlimited.
	FlushBytesPerSec int64
}

// Controller manages resources shared across mappings.
type Controller struct {
	cfg Config

	mapSem *semaphore.Weighted // nil if unlimited
	mapped atomic.Int64

	bgSem *semaphore.Weighted

	flushLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MappedBytesLimit > 0 {
		c.mapSem = semaphore.NewWeighted(cfg.MappedBytesLimit)
	}

	if cfg.FlushBytesPerSec > 0 {
		c.flushLimiter = rate.NewLimiter(rate.Limit(cfg.FlushBytesPerSec), int(cfg.FlushBytesPerSec))
	}

	return c
}

// AcquireMapped attempts to reserve address space for a new mapping.
// Non-blocking; returns ErrMappedBytesExceeded when the cap is hit, so the
// caller fails construction instead of waiting.
func (c *Controller) AcquireMapped(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.mapSem != nil {
		if !c.mapSem.TryAcquire(bytes) {
			return ErrMappedBytesExceeded
		}
	}
	c.mapped.Add(bytes)
	return nil
}

// ReleaseMapped releases reserved address space after an unmap.
func (c *Controller) ReleaseMapped(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.mapSem != nil {
		c.mapSem.Release(bytes)
	}
	c.mapped.Add(-bytes)
}

// MappedBytes returns the total bytes currently mapped.
func (c *Controller) MappedBytes() int64 {
	if c == nil {
		return 0
	}
	return c.mapped.Load()
}

// MappedBytesLimit returns the configured cap (0 if unlimited).
func (c *Controller) MappedBytesLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MappedBytesLimit
}

// AcquireBackground reserves a background worker slot, blocking while all
// slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground reserves a slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// AcquireFlushIO waits until the flush rate limit allows bytes more bytes.
func (c *Controller) AcquireFlushIO(ctx context.Context, bytes int) error {
	if c == nil || c.flushLimiter == nil {
		return nil
	}
	// WaitN rejects requests larger than the burst outright; split them.
	burst := c.flushLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.flushLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireFlushIO attempts to acquire flush tokens without blocking.
func (c *Controller) TryAcquireFlushIO(bytes int) bool {
	if c == nil || c.flushLimiter == nil {
		return true
	}
	return c.flushLimiter.AllowN(time.Now(), bytes)
}
