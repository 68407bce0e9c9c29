package hosted

import (
	"errors"
	"sync/atomic"

	"wavescope/core"
)

var ErrAudioUnavailable = errors.New("audio output not built in (headless)")

// audioTap converts one synthesis channel into float32 samples in [-1, 1]
// and queues them for playback. Samples are dropped while the queue is full.
type audioTap struct {
	channel core.ChannelID
	outMax  float32
	ring    *floatRing
	dropped atomic.Uint32
	last    float32
}

func newAudioTap(channel core.ChannelID, outMax core.Sample, queue int) *audioTap {
	if outMax == 0 {
		outMax = 4095
	}
	return &audioTap{channel: channel, outMax: float32(outMax), ring: newFloatRing(queue)}
}

func (a *audioTap) WriteSample(ch core.ChannelID, v core.Sample) error {
	if ch != a.channel {
		return nil
	}
	if !a.ring.push(float32(v)/a.outMax*2 - 1) {
		a.dropped.Add(1)
	}
	return nil
}

// fill pops queued samples into dst, holding the last value on underrun
func (a *audioTap) fill(dst []float32) {
	for i := range dst {
		if v, ok := a.ring.pop(); ok {
			a.last = v
		}
		dst[i] = a.last
	}
}

// Dropped returns how many samples found the queue full
func (a *audioTap) Dropped() uint32 {
	return a.dropped.Load()
}
