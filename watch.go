package mmapio

import (
	"context"
	"os"
	"sync"
	"time"
)

// EventKind classifies a change observed on the mapped file.
type EventKind int

const (
	// EventModified means the file contents changed.
	EventModified EventKind = iota
	// EventMetadataChanged means the permission bits changed while size and
	// modification time did not. Size and modification-time changes are
	// reported as EventModified.
	EventMetadataChanged
	// EventRemoved means the file disappeared from its path.
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventModified:
		return "modified"
	case EventMetadataChanged:
		return "metadata-changed"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event describes one observed change. Offset and Length narrow the change
// when the watcher can tell (a grow reports the new tail); zero values
// mean the whole file.
type Event struct {
	Kind   EventKind
	Offset int64
	Length int64
}

// WatchHandle stops event delivery when Stop is called.
type WatchHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Stop halts delivery and joins the watcher goroutine. Idempotent.
func (h *WatchHandle) Stop() {
	h.once.Do(h.cancel)
	h.wg.Wait()
}

// Watch polls the mapped file every interval and delivers change events to
// fn from a background goroutine. Delivery is at-least-once and unordered;
// changes between two polls may coalesce into one event, and a very short
// interval may still miss intermediate states. fn must not call Stop on
// the returned handle from within the callback.
func (m *MemoryMappedFile) Watch(interval time.Duration, fn func(Event)) (*WatchHandle, error) {
	if fn == nil {
		return nil, &WatchError{Detail: "nil callback"}
	}
	if interval <= 0 {
		return nil, &WatchError{Detail: "non-positive interval"}
	}

	prev, err := os.Stat(m.path)
	if err != nil {
		return nil, &WatchError{Detail: "stat " + m.path, cause: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &WatchHandle{cancel: cancel}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		if err := m.ctrl.AcquireBackground(ctx); err != nil {
			return
		}
		defer m.ctrl.ReleaseBackground()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cur, err := os.Stat(m.path)
			if err != nil {
				if os.IsNotExist(err) {
					fn(Event{Kind: EventRemoved})
					return
				}
				m.logger.Debug("watch stat failed", "path", m.path, "error", err)
				continue
			}

			switch {
			case cur.Size() != prev.Size():
				ev := Event{Kind: EventModified}
				if cur.Size() > prev.Size() {
					ev.Offset = prev.Size()
					ev.Length = cur.Size() - prev.Size()
				}
				fn(ev)
			case !cur.ModTime().Equal(prev.ModTime()):
				fn(Event{Kind: EventModified, Length: cur.Size()})
			case cur.Mode() != prev.Mode():
				fn(Event{Kind: EventMetadataChanged})
			}
			prev = cur
		}
	}()

	return h, nil
}
