package mmapio

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_InvalidArguments(t *testing.T) {
	path := seedFile(t, "winval.bin", make([]byte, 64))

	m, err := OpenRO(path)
	require.NoError(t, err)
	defer m.Close()

	var we *WatchError
	_, err = m.Watch(0, func(Event) {})
	require.ErrorAs(t, err, &we)

	_, err = m.Watch(time.Millisecond, nil)
	require.ErrorAs(t, err, &we)
}

func TestWatch_ModificationEvent(t *testing.T) {
	path := seedFile(t, "wmod.bin", make([]byte, 64))

	m, err := OpenRO(path)
	require.NoError(t, err)
	defer m.Close()

	events := make(chan Event, 16)
	h, err := m.Watch(10*time.Millisecond, func(ev Event) {
		events <- ev
	})
	require.NoError(t, err)
	defer h.Stop()

	// Grow the file out-of-band.
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o600))

	select {
	case ev := <-events:
		assert.Equal(t, EventModified, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWatch_GrowReportsTail(t *testing.T) {
	path := seedFile(t, "wgrow.bin", make([]byte, 64))

	m, err := OpenRO(path)
	require.NoError(t, err)
	defer m.Close()

	events := make(chan Event, 16)
	h, err := m.Watch(10*time.Millisecond, func(ev Event) {
		events <- ev
	})
	require.NoError(t, err)
	defer h.Stop()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 32))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case ev := <-events:
		require.Equal(t, EventModified, ev.Kind)
		assert.Equal(t, int64(64), ev.Offset)
		assert.Equal(t, int64(32), ev.Length)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWatch_RemovedEvent(t *testing.T) {
	path := seedFile(t, "wrm.bin", make([]byte, 64))

	m, err := OpenRO(path)
	require.NoError(t, err)
	defer m.Close()

	events := make(chan Event, 16)
	h, err := m.Watch(10*time.Millisecond, func(ev Event) {
		events <- ev
	})
	require.NoError(t, err)
	defer h.Stop()

	require.NoError(t, os.Remove(path))

	select {
	case ev := <-events:
		assert.Equal(t, EventRemoved, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWatch_StopHaltsDelivery(t *testing.T) {
	path := seedFile(t, "wstop.bin", make([]byte, 64))

	m, err := OpenRO(path)
	require.NoError(t, err)
	defer m.Close()

	events := make(chan Event, 16)
	h, err := m.Watch(10*time.Millisecond, func(ev Event) {
		events <- ev
	})
	require.NoError(t, err)

	h.Stop()
	h.Stop() // idempotent

	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o600))
	select {
	case ev := <-events:
		t.Fatalf("event %v delivered after Stop", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "modified", EventModified.String())
	assert.Equal(t, "metadata-changed", EventMetadataChanged.String())
	assert.Equal(t, "removed", EventRemoved.String())
}
