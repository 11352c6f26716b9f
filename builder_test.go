package mmapio

import (
	"testing"
	"time"

	"github.com/asotex/mmap-io/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_CreateWithOptions(t *testing.T) {
	path := tmpFile(t, "built.bin")

	m, err := NewBuilder(path).
		Mode(ModeReadWrite).
		Size(1 << 20).
		FlushPolicy(FlushEveryBytes(64 << 10)).
		TouchHint(TouchEager).
		Advice(AdviceSequential).
		Logger(NoopLogger()).
		Create()
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(1<<20), m.Len())
	assert.Equal(t, ModeReadWrite, m.Mode())
}

func TestBuilder_Immutable(t *testing.T) {
	base := NewBuilder(tmpFile(t, "immutable.bin")).Size(4096)

	a := base.FlushPolicy(FlushAlways())
	b := base.FlushPolicy(FlushEveryWrites(10))

	ma, err := a.Create()
	require.NoError(t, err)
	defer ma.Close()

	// Specializing one branch did not leak into the other: the base and b
	// still carry their own policies.
	assert.Equal(t, FlushNever(), base.flushPolicy)
	assert.Equal(t, FlushEveryWrites(10), b.flushPolicy)
	assert.Equal(t, FlushAlways(), ma.policy)
}

func TestBuilder_CreateRequiresReadWrite(t *testing.T) {
	b := NewBuilder(tmpFile(t, "rocreate.bin")).
		Mode(ModeReadOnly).
		Size(4096)

	var ime *InvalidModeError
	_, err := b.Create()
	require.ErrorAs(t, err, &ime)
}

func TestBuilder_OpenModes(t *testing.T) {
	path := seedFile(t, "bopen.bin", []byte("builder open data"))

	ro, err := NewBuilder(path).Mode(ModeReadOnly).Open()
	require.NoError(t, err)
	defer ro.Close()
	assert.Equal(t, ModeReadOnly, ro.Mode())

	cow, err := NewBuilder(path).Mode(ModeCopyOnWrite).Open()
	require.NoError(t, err)
	defer cow.Close()
	assert.Equal(t, ModeCopyOnWrite, cow.Mode())
}

func TestBuilder_WithController(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MappedBytesLimit: 8192})

	m1, err := NewBuilder(tmpFile(t, "ctrl1.bin")).
		Size(6144).
		Controller(ctrl).
		Create()
	require.NoError(t, err)
	defer m1.Close()
	assert.Equal(t, int64(6144), ctrl.MappedBytes())

	// A second mapping would exceed the cap and fails fast.
	_, err = NewBuilder(tmpFile(t, "ctrl2.bin")).
		Size(4096).
		Controller(ctrl).
		Create()
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrMappedBytesExceeded)

	require.NoError(t, m1.Close())
	assert.Equal(t, int64(0), ctrl.MappedBytes())
}

func TestBuilder_IntervalPolicy(t *testing.T) {
	path := tmpFile(t, "binterval.bin")

	m, err := NewBuilder(path).
		Size(4096).
		FlushPolicy(FlushInterval(20 * time.Millisecond)).
		Create()
	require.NoError(t, err)

	require.NoError(t, m.UpdateRegion(0, []byte("tick")))
	require.Eventually(t, func() bool {
		return m.Stats().FlushCount >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
}
