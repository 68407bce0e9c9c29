package hosted

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavescope/core"
)

func TestFloatRing(t *testing.T) {
	r := newFloatRing(3)
	require.Len(t, r.buf, 4)

	for i := 0; i < 4; i++ {
		assert.True(t, r.push(float32(i)))
	}
	assert.False(t, r.push(9), "full")
	assert.Equal(t, 4, r.len())

	for i := 0; i < 4; i++ {
		v, ok := r.pop()
		require.True(t, ok)
		assert.Equal(t, float32(i), v)
	}
	_, ok := r.pop()
	assert.False(t, ok)

	// indices keep counting past the wrap
	assert.True(t, r.push(5))
	v, _ := r.pop()
	assert.Equal(t, float32(5), v)
}

func TestAudioTapScalesAndFilters(t *testing.T) {
	a := newAudioTap(1, 4095, 8)

	require.NoError(t, a.WriteSample(0, 4095))
	require.NoError(t, a.WriteSample(1, 0))
	require.NoError(t, a.WriteSample(1, 4095))
	require.NoError(t, a.WriteSample(1, 2048))

	out := make([]float32, 5)
	a.fill(out)
	assert.Equal(t, float32(-1), out[0])
	assert.Equal(t, float32(1), out[1])
	assert.InDelta(t, 0, out[2], 0.001)
	// underrun holds the last value
	assert.Equal(t, out[2], out[3])
	assert.Equal(t, out[2], out[4])
}

func TestAudioTapCountsDrops(t *testing.T) {
	a := newAudioTap(0, 0, 2)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.WriteSample(0, 100))
	}
	assert.Equal(t, uint32(3), a.Dropped())
}

func TestRecordingSinkForwards(t *testing.T) {
	tap := newAudioTap(2, 4095, 4)
	sink := NewRecordingSink(2, tap)

	for _, v := range []core.Sample{1, 2, 3} {
		require.NoError(t, sink.WriteSample(2, v))
	}
	assert.Equal(t, core.Sample(3), sink.Last(2))
	assert.Equal(t, uint64(3), sink.Writes())
	assert.Len(t, sink.Trace(2), 2)
	assert.Equal(t, 3, tap.ring.len())
}

func TestLoopbackSourceMapsChannels(t *testing.T) {
	sink := NewRecordingSink(0, nil)
	src := NewLoopbackSource(sink, map[core.ChannelID]core.ChannelID{0: 0, 1: 3})
	require.NoError(t, sink.WriteSample(0, 10))
	require.NoError(t, sink.WriteSample(3, 30))

	v, err := src.ReadResult(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(30), v)
	v, err = src.ReadResult(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(10), v)
}
