package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapTempFile(t *testing.T, size int, prot Prot) (*Region, *os.File) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "region.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(size)))
	t.Cleanup(func() { f.Close() })

	r, err := Map(f, size, prot, MapOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Unmap() })
	return r, f
}

func TestPageSize(t *testing.T) {
	ps := PageSize()
	assert.Greater(t, ps, 0)
	assert.Zero(t, ps&(ps-1), "page size is a power of two")
	assert.Equal(t, ps, PageSize())
}

func TestAlignRange(t *testing.T) {
	ps := PageSize()
	max := ps * 4

	start, end := alignRange(0, 1, max)
	assert.Equal(t, 0, start)
	assert.Equal(t, ps, end)

	start, end = alignRange(int64(ps)+1, 1, max)
	assert.Equal(t, ps, start)
	assert.Equal(t, 2*ps, end)

	// Exact page boundaries pass through unchanged.
	start, end = alignRange(int64(ps), ps, max)
	assert.Equal(t, ps, start)
	assert.Equal(t, 2*ps, end)

	// Clamped to the mapping end.
	start, end = alignRange(int64(max)-1, 1, max)
	assert.Equal(t, max-ps, start)
	assert.Equal(t, max, end)
}

func TestMap_WriteFlushVisible(t *testing.T) {
	r, f := mapTempFile(t, PageSize(), ProtReadWrite)

	copy(r.Bytes(), "platform bytes")
	require.NoError(t, r.Flush())

	// Bytes reached the file.
	got := make([]byte, 14)
	_, err := f.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, "platform bytes", string(got))
}

func TestMap_InvalidLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer f.Close()

	_, err = Map(f, 0, ProtRead, MapOptions{})
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
}

func TestFlushRange_SubPageExpansion(t *testing.T) {
	r, _ := mapTempFile(t, PageSize()*4, ProtReadWrite)

	copy(r.Bytes()[100:], "microflush")
	// A 10-byte range inside the first page; the implementation expands it
	// to the page boundary before issuing the OS call.
	require.NoError(t, r.FlushRange(100, 10))

	// Spanning a page boundary works too.
	require.NoError(t, r.FlushRange(int64(PageSize())-4, 8))
}

func TestUnmap_Idempotent(t *testing.T) {
	r, _ := mapTempFile(t, PageSize(), ProtRead)

	require.NoError(t, r.Unmap())
	require.NoError(t, r.Unmap())
	assert.Nil(t, r.Bytes())

	assert.ErrorIs(t, r.Flush(), ErrNotMapped)
	assert.ErrorIs(t, r.Touch(0, 1), ErrNotMapped)
}

func TestTouch(t *testing.T) {
	r, _ := mapTempFile(t, PageSize()*8, ProtRead)

	require.NoError(t, r.Touch(0, r.Len()))
	require.NoError(t, r.Touch(int64(PageSize()), PageSize()))
}

func TestAdvise_Hints(t *testing.T) {
	r, _ := mapTempFile(t, PageSize()*2, ProtRead)

	for _, a := range []Advice{AdviceNormal, AdviceRandom, AdviceSequential, AdviceWillNeed, AdviceDontNeed} {
		require.NoError(t, r.Advise(0, r.Len(), a))
	}
}

func TestCopyOnWrite_PrivatePages(t *testing.T) {
	r, f := mapTempFile(t, PageSize(), ProtCopyOnWrite)

	r.Bytes()[0] = 0x7F

	got := make([]byte, 1)
	_, err := f.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), got[0], "private write must not reach the file")
}

func TestMap_HugePagesBestEffort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer f.Close()

	size := PageSize() * 16
	require.NoError(t, f.Truncate(int64(size)))

	// Every tier may decline; mapping must still succeed.
	r, err := Map(f, size, ProtReadWrite, MapOptions{HugePages: true})
	require.NoError(t, err)
	defer r.Unmap()

	copy(r.Bytes(), "tiered")
	require.NoError(t, r.Flush())
}
