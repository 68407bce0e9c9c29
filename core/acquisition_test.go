package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAcquisition(t *testing.T, source ConversionSource, capacity int, ids ...ChannelID) *AcquisitionHandler {
	t.Helper()
	var channels []*AcquisitionChannel
	for _, id := range ids {
		buf, err := NewSampleBuffer(capacity)
		require.NoError(t, err)
		channels = append(channels, &AcquisitionChannel{ID: id, Buffer: buf})
	}
	return NewAcquisitionHandler(source, DefaultResolutionBits, channels...)
}

func TestAcquisitionIgnoresCompletionsUntilArmed(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 100}}
	h := newTestAcquisition(t, src, 4, 0)

	h.OnConversionComplete()
	assert.False(t, h.Armed())
	assert.Zero(t, h.Completed())
	assert.Zero(t, h.Channels()[0].Buffer.Writes())

	h.Arm()
	h.OnConversionComplete()
	assert.Equal(t, uint32(1), h.Completed())
	assert.Equal(t, Sample(100), h.Channels()[0].Buffer.Latest())
}

func TestAcquisitionFillsEachChannel(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 11, 1: 22}}
	h := newTestAcquisition(t, src, 167, 0, 1)
	h.Arm()

	for i := 0; i < 168; i++ {
		h.MarkStarted()
		h.OnConversionComplete()
	}

	for _, ch := range h.Channels() {
		assert.Equal(t, uint64(168), ch.Buffer.Writes())
		assert.Equal(t, 1, ch.Buffer.Index())
	}
	assert.Equal(t, Sample(22), h.Channels()[1].Buffer.Latest())
	assert.Zero(t, h.LateConversions())
}

func TestAcquisitionMasksToResolution(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 0xFFFF}}
	h := newTestAcquisition(t, src, 4, 0)
	h.Arm()
	h.OnConversionComplete()

	assert.Equal(t, Sample(4095), h.Channels()[0].Buffer.Latest())
}

func TestAcquisitionResolutionDefaults(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 0xFFFF}}
	buf, err := NewSampleBuffer(2)
	require.NoError(t, err)

	h := NewAcquisitionHandler(src, 0, &AcquisitionChannel{ID: 0, Buffer: buf})
	h.Arm()
	h.OnConversionComplete()
	assert.Equal(t, Sample(4095), buf.Latest())

	buf16, err := NewSampleBuffer(2)
	require.NoError(t, err)
	h16 := NewAcquisitionHandler(src, 16, &AcquisitionChannel{ID: 0, Buffer: buf16})
	h16.Arm()
	h16.OnConversionComplete()
	assert.Equal(t, Sample(0xFFFF), buf16.Latest())
}

func TestAcquisitionCountsLateConversions(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 1}}
	h := newTestAcquisition(t, src, 4, 0)
	h.Arm()

	// next conversion started before this one completed
	h.MarkStarted()
	h.MarkStarted()
	h.OnConversionComplete()

	assert.Equal(t, uint32(1), h.LateConversions())
	assert.Equal(t, uint32(2), h.Started())

	h.OnConversionComplete()
	assert.Equal(t, uint32(1), h.LateConversions(), "caught up")

	events := h.Timing().Events()
	require.Len(t, events, 1)
	assert.Equal(t, uint8(EvtLateConversion), events[0].EventType)
	assert.Equal(t, uint32(1), events[0].Value1)
}

func TestAcquisitionDroppedConversionIsNotLate(t *testing.T) {
	src := &mapSource{values: map[ChannelID]uint16{0: 1}}
	h := newTestAcquisition(t, src, 4, 0)
	h.Arm()

	h.MarkStarted()
	h.MarkDropped()
	for i := 0; i < 3; i++ {
		h.MarkStarted()
		h.OnConversionComplete()
	}

	assert.Equal(t, uint32(1), h.Dropped())
	assert.Equal(t, uint32(3), h.Completed())
	assert.Zero(t, h.LateConversions())

	// a genuinely late completion is still counted
	h.MarkStarted()
	h.MarkStarted()
	h.OnConversionComplete()
	assert.Equal(t, uint32(1), h.LateConversions())
}

func TestAcquisitionReadErrorSkipsWrite(t *testing.T) {
	src := &mapSource{
		values: map[ChannelID]uint16{0: 5, 1: 6},
		fail:   map[ChannelID]bool{1: true},
	}
	h := newTestAcquisition(t, src, 4, 0, 1)
	h.Arm()
	h.OnConversionComplete()

	assert.Equal(t, uint32(1), h.ReadErrors())
	assert.Equal(t, uint64(1), h.Channels()[0].Buffer.Writes())
	assert.Zero(t, h.Channels()[1].Buffer.Writes())
}

func TestTimingRingKeepsNewest(t *testing.T) {
	var r TimingRing
	for i := uint32(1); i <= TimingRingSize+5; i++ {
		r.Record(EvtModulation, 0, i, 0, 0)
	}

	events := r.Events()
	require.Len(t, events, TimingRingSize)
	assert.Equal(t, uint32(6), events[0].Tick)
	assert.Equal(t, uint32(TimingRingSize+5), events[len(events)-1].Tick)
	assert.Equal(t, uint32(TimingRingSize+5), r.Total())

	var lines []string
	r.Dump("test", func(s string) { lines = append(lines, s) })
	assert.Len(t, lines, TimingRingSize+2)
	assert.Contains(t, lines[1], "PWM_APPLY")
}
