package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleBufferRejectsZeroCapacity(t *testing.T) {
	_, err := NewSampleBuffer(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewSampleBuffer(-3)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestSampleBufferStartsZeroed(t *testing.T) {
	b, err := NewSampleBuffer(167)
	require.NoError(t, err)

	assert.Equal(t, 167, b.Cap())
	assert.Equal(t, 0, b.Index())
	assert.False(t, b.Filled())
	for _, v := range b.Raw(nil) {
		assert.Zero(t, v)
	}
}

func TestSampleBufferWrapsAtCapacity(t *testing.T) {
	b, err := NewSampleBuffer(167)
	require.NoError(t, err)

	for i := 0; i < 167; i++ {
		b.Write(Sample(i))
		assert.Equal(t, Sample(i), b.Latest())
	}
	assert.Equal(t, 0, b.Index(), "index wraps to 0 after C writes")
	assert.True(t, b.Filled())

	// the 168th write overwrites slot 0
	b.Write(999)
	raw := b.Raw(nil)
	assert.Equal(t, Sample(999), raw[0])
	assert.Equal(t, Sample(1), raw[1])
	assert.Equal(t, 1, b.Index())
	assert.Equal(t, uint64(168), b.Writes())
}

func TestSampleBufferLatestIsAtNMinusOneModC(t *testing.T) {
	b, err := NewSampleBuffer(5)
	require.NoError(t, err)

	for n := 1; n <= 23; n++ {
		b.Write(Sample(n))
		raw := b.Raw(nil)
		assert.Equal(t, Sample(n), raw[(n-1)%5], "after %d writes", n)
		assert.Less(t, b.Index(), b.Cap())
	}
}

func TestSampleBufferSnapshotIsChronological(t *testing.T) {
	b, err := NewSampleBuffer(4)
	require.NoError(t, err)

	for v := Sample(1); v <= 5; v++ {
		b.Write(v)
	}
	assert.Equal(t, []Sample{5, 2, 3, 4}, b.Raw(nil))

	snap, index := b.Snapshot(nil)
	assert.Equal(t, []Sample{2, 3, 4, 5}, snap)
	assert.Equal(t, 1, index)

	// dst is reused when large enough
	dst := make([]Sample, 0, 8)
	snap, _ = b.Snapshot(dst)
	assert.Len(t, snap, 4)
	assert.Equal(t, 8, cap(snap))
}

func TestSampleBufferSnapshotBeforeFill(t *testing.T) {
	b, err := NewSampleBuffer(4)
	require.NoError(t, err)
	b.Write(7)

	snap, index := b.Snapshot(nil)
	assert.Equal(t, []Sample{0, 0, 0, 7}, snap)
	assert.Equal(t, 1, index)
}

func TestCapacityFor(t *testing.T) {
	assert.Equal(t, 167, CapacityFor(10000, 60))
	assert.Equal(t, 83, CapacityFor(20000, 240))
	assert.Equal(t, 0, CapacityFor(10000, 0))
	assert.Equal(t, 0, CapacityFor(-1, 60))
}
