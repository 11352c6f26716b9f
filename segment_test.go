package mmapio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_ReadWrite(t *testing.T) {
	path := tmpFile(t, "seg.bin")

	m, err := CreateRW(path, 4096)
	require.NoError(t, err)
	defer m.Close()

	seg, err := m.Segment(1024, 256)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), seg.Offset())
	assert.Equal(t, 256, seg.Len())
	assert.Same(t, m, seg.Owner())

	require.NoError(t, seg.UpdateRegion(0, []byte("segment payload")))

	buf := make([]byte, 15)
	require.NoError(t, seg.ReadInto(0, buf))
	assert.Equal(t, "segment payload", string(buf))

	// The write landed at the absolute offset.
	require.NoError(t, m.ReadInto(1024, buf))
	assert.Equal(t, "segment payload", string(buf))

	require.NoError(t, seg.Flush())
}

func TestSegment_RelativeBounds(t *testing.T) {
	path := tmpFile(t, "segb.bin")

	m, err := CreateRW(path, 4096)
	require.NoError(t, err)
	defer m.Close()

	seg, err := m.Segment(0, 64)
	require.NoError(t, err)

	var oob *OutOfBoundsError
	require.ErrorAs(t, seg.ReadInto(60, make([]byte, 5)), &oob)
	assert.Equal(t, int64(64), oob.Total)
	require.ErrorAs(t, seg.UpdateRegion(64, []byte("x")), &oob)
	require.NoError(t, seg.UpdateRegion(63, []byte("x")))
}

func TestSegment_ConstructionBounds(t *testing.T) {
	path := tmpFile(t, "segc.bin")

	m, err := CreateRW(path, 64)
	require.NoError(t, err)
	defer m.Close()

	var oob *OutOfBoundsError
	_, err = m.Segment(32, 33)
	require.ErrorAs(t, err, &oob)
}

func TestSegment_RevalidatesAfterShrink(t *testing.T) {
	path := tmpFile(t, "segshrink.bin")

	m, err := CreateRW(path, 8192)
	require.NoError(t, err)
	defer m.Close()

	seg, err := m.Segment(4096, 4096)
	require.NoError(t, err)

	require.NoError(t, m.Resize(4096))

	// The window is stale now; access fails instead of touching
	// unmapped memory.
	var oob *OutOfBoundsError
	require.ErrorAs(t, seg.ReadInto(0, make([]byte, 1)), &oob)
	require.ErrorAs(t, seg.UpdateRegion(0, []byte("x")), &oob)
}

func TestSegment_FailsAfterClose(t *testing.T) {
	path := tmpFile(t, "segclose.bin")

	m, err := CreateRW(path, 64)
	require.NoError(t, err)

	seg, err := m.Segment(0, 16)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, seg.ReadInto(0, make([]byte, 1)), ErrClosed)
}

func TestSegment_SliceFollowsModeRule(t *testing.T) {
	path := seedFile(t, "segslice.bin", []byte("read only bytes!"))

	ro, err := OpenRO(path)
	require.NoError(t, err)
	defer ro.Close()

	seg, err := ro.Segment(5, 4)
	require.NoError(t, err)

	s, err := seg.Slice()
	require.NoError(t, err)
	assert.Equal(t, "only", string(s))

	rw, err := OpenRW(path)
	require.NoError(t, err)
	defer rw.Close()

	wseg, err := rw.Segment(0, 4)
	require.NoError(t, err)
	var ime *InvalidModeError
	_, err = wseg.Slice()
	require.ErrorAs(t, err, &ime)
}
