package core

import (
	"errors"
	"math"
)

// Sample is an unsigned converter code. Both the analog output and the
// acquisition path use 12-bit codes in the bench setup.
type Sample uint16

// ChannelID identifies a synthesis or acquisition channel
type ChannelID uint8

var ErrInvalidCapacity = errors.New("sample buffer capacity must be at least 1")

// SampleBuffer is a fixed-capacity ring of acquired samples with
// overwrite-oldest semantics. Write is called only from the acquisition
// handler that owns the buffer; readers outside that context use Snapshot.
type SampleBuffer struct {
	slots  []Sample
	index  int    // next slot to write, always in [0, len(slots))
	writes uint64 // total writes since start
}

// NewSampleBuffer allocates a zero-filled buffer of the given capacity
func NewSampleBuffer(capacity int) (*SampleBuffer, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &SampleBuffer{slots: make([]Sample, capacity)}, nil
}

// CapacityFor returns the capacity that makes the buffer span roughly one
// period of the observed signal: tickFrequency / signalFrequency, rounded.
// 10 kHz / 60 Hz gives 167; 20 kHz / 240 Hz gives 83.
func CapacityFor(tickFrequency, signalFrequency float64) int {
	if tickFrequency <= 0 || signalFrequency <= 0 {
		return 0
	}
	return int(math.Round(tickFrequency / signalFrequency))
}

// Write stores v at the write index and advances the index, wrapping to 0
// at capacity
func (b *SampleBuffer) Write(v Sample) {
	b.slots[b.index] = v
	b.index++
	if b.index >= len(b.slots) {
		b.index = 0
	}
	b.writes++
}

// Cap returns the buffer capacity C
func (b *SampleBuffer) Cap() int {
	return len(b.slots)
}

// Index returns the slot the next write will land in
func (b *SampleBuffer) Index() int {
	return b.index
}

// Writes returns the number of samples written since start
func (b *SampleBuffer) Writes() uint64 {
	return b.writes
}

// Filled reports whether every slot has been written at least once
func (b *SampleBuffer) Filled() bool {
	return b.writes >= uint64(len(b.slots))
}

// Latest returns the most recently written sample
func (b *SampleBuffer) Latest() Sample {
	i := b.index - 1
	if i < 0 {
		i = len(b.slots) - 1
	}
	return b.slots[i]
}

// Raw copies the slots in storage order into dst and returns it.
// dst is grown if it is too small.
func (b *SampleBuffer) Raw(dst []Sample) []Sample {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	dst = grow(dst, len(b.slots))
	copy(dst, b.slots)
	return dst
}

// Snapshot copies the slots oldest-first into dst and returns it, along with
// the write index at the time of the copy. Before the buffer has filled, the
// leading entries are the unwritten zero slots.
func (b *SampleBuffer) Snapshot(dst []Sample) ([]Sample, int) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	dst = grow(dst, len(b.slots))
	n := copy(dst, b.slots[b.index:])
	copy(dst[n:], b.slots[:b.index])
	return dst, b.index
}

func grow(dst []Sample, n int) []Sample {
	if cap(dst) < n {
		return make([]Sample, n)
	}
	return dst[:n]
}
