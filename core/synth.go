package core

import (
	"errors"
	"math"
)

// TwoPi is one full waveform cycle in radians
const TwoPi = 2 * math.Pi

var ErrInvalidTransform = errors.New("sample transform: width must be 2..31 and shift below width")

// Channel is one analog synthesis channel. Step is called once per tick from
// the tick dispatcher and returns the clamped output code for that tick.
type Channel interface {
	ID() ChannelID
	Step(elapsed float64) Sample
}

// ClampSample bounds v into [0, outMax] without rounding. NaN maps to 0.
func ClampSample(v float64, outMax Sample) Sample {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= float64(outMax):
		return outMax
	}
	return Sample(v)
}

// PhaseIncrement returns the per-tick phase advance for a waveform of the given
// frequency at the given tick period (seconds)
func PhaseIncrement(frequency, tickPeriod float64) float64 {
	return frequency * TwoPi * tickPeriod
}

// PhaseChannel synthesizes a sine from a private phase accumulator
type PhaseChannel struct {
	id        ChannelID
	phase     float64
	increment float64
	amplitude float64
	offset    float64
	outMax    Sample
}

// NewPhaseChannel creates a phase-accumulator channel. The increment is
// fixed here and never recomputed.
func NewPhaseChannel(id ChannelID, increment, amplitude, offset float64, outMax Sample) *PhaseChannel {
	return &PhaseChannel{
		id:        id,
		increment: increment,
		amplitude: amplitude,
		offset:    offset,
		outMax:    outMax,
	}
}

func (c *PhaseChannel) ID() ChannelID { return c.id }

// Phase returns the accumulator, always in [0, 2π)
func (c *PhaseChannel) Phase() float64 { return c.phase }

// Step advances the phase and returns round((sin+1)*amplitude/2)+offset.
//
// Crossing 2π resets the phase to 0 and drops the remainder, so the phase
// after T ticks is not (T*increment) mod 2π unless the increment divides 2π.
// The lost remainder lowers the synthesized frequency slightly. Landing
// exactly on 2π also resets, keeping the phase inside [0, 2π).
func (c *PhaseChannel) Step(float64) Sample {
	c.phase += c.increment
	if c.phase >= TwoPi {
		c.phase = 0
	}
	v := math.Round((math.Sin(c.phase)+1)*c.amplitude/2) + c.offset
	return ClampSample(v, c.outMax)
}

// TimeBaseChannel synthesizes directly from the elapsed-time accumulator.
// It has no phase of its own: resetting the accumulator restarts the wave.
type TimeBaseChannel struct {
	id        ChannelID
	frequency float64
	amplitude float64
	offset    float64
	outMax    Sample
}

// NewTimeBaseChannel creates an elapsed-time driven channel
func NewTimeBaseChannel(id ChannelID, frequency, amplitude, offset float64, outMax Sample) *TimeBaseChannel {
	return &TimeBaseChannel{
		id:        id,
		frequency: frequency,
		amplitude: amplitude,
		offset:    offset,
		outMax:    outMax,
	}
}

func (c *TimeBaseChannel) ID() ChannelID { return c.id }

// Step returns round(sin(2π·f·elapsed)·amplitude/2 + offset), clamped
func (c *TimeBaseChannel) Step(elapsed float64) Sample {
	v := math.Sin(TwoPi*c.frequency*elapsed)*c.amplitude/2 + c.offset
	return ClampSample(math.Round(v), c.outMax)
}

// SampleTransform maps a signed Width-bit table value into the unsigned
// output domain by flipping the sign bit (offset binary) and shifting right.
// Apply(v) == (v + Bias()) / Scale() for every v in [MinSigned, MaxSigned].
type SampleTransform struct {
	Width uint8 // bits of the signed domain; the sign bit is Width-1
	Shift uint8 // right shift applied after the sign flip
}

// DemoTransform is the 16-bit sign flip plus >>5 used with a gain-8 table,
// mapping ±32767 onto 0..2047
var DemoTransform = SampleTransform{Width: 16, Shift: 5}

// Validate checks the transform parameters
func (t SampleTransform) Validate() error {
	if t.Width < 2 || t.Width > 31 || t.Shift >= t.Width {
		return ErrInvalidTransform
	}
	return nil
}

// Bias is the offset the sign flip adds: 2^(Width-1)
func (t SampleTransform) Bias() int32 { return 1 << (t.Width - 1) }

// Scale is the divisor the shift applies: 2^Shift
func (t SampleTransform) Scale() int32 { return 1 << t.Shift }

// MinSigned is the smallest representable table value
func (t SampleTransform) MinSigned() int32 { return -t.Bias() }

// MaxSigned is the largest representable table value
func (t SampleTransform) MaxSigned() int32 { return t.Bias() - 1 }

// Apply maps a signed table value to the unsigned output domain
func (t SampleTransform) Apply(v int32) uint32 {
	mask := uint32(1)<<t.Width - 1
	sign := uint32(1) << (t.Width - 1)
	return ((uint32(v) & mask) ^ sign) >> t.Shift
}

// BuildSineTable precomputes table[k] = round(sin(2πk/n)·amplitude·gain),
// saturated into the transform's signed domain
func BuildSineTable(n int, amplitude, gain float64, t SampleTransform) []int32 {
	table := make([]int32, n)
	lo, hi := float64(t.MinSigned()), float64(t.MaxSigned())
	for k := range table {
		v := math.Round(math.Sin(TwoPi*float64(k)/float64(n)) * amplitude * gain)
		table[k] = int32(math.Max(lo, math.Min(hi, v)))
	}
	return table
}

// TableChannel reads a precomputed table cyclically, one entry per tick.
//
// The table is read at the tick rate regardless of the configured waveform
// frequency: the produced frequency is CycleFrequency, and when the ticks per
// cycle differ from the table length the two silently diverge.
type TableChannel struct {
	id        ChannelID
	table     []int32
	index     int
	transform SampleTransform
	offset    float64
	outMax    Sample
}

// NewTableChannel creates a lookup-table channel over a prebuilt table
func NewTableChannel(id ChannelID, table []int32, transform SampleTransform, offset float64, outMax Sample) *TableChannel {
	return &TableChannel{
		id:        id,
		table:     table,
		transform: transform,
		offset:    offset,
		outMax:    outMax,
	}
}

func (c *TableChannel) ID() ChannelID { return c.id }

// Index returns the next table position, always in [0, N)
func (c *TableChannel) Index() int { return c.index }

// Len returns the table length N
func (c *TableChannel) Len() int { return len(c.table) }

// CycleFrequency is the waveform frequency actually produced at the given
// tick period (seconds): 1 / (N·P)
func (c *TableChannel) CycleFrequency(tickPeriod float64) float64 {
	if tickPeriod <= 0 || len(c.table) == 0 {
		return 0
	}
	return 1 / (float64(len(c.table)) * tickPeriod)
}

// Step emits transform(table[index]) + offset and advances the index
func (c *TableChannel) Step(float64) Sample {
	v := float64(c.transform.Apply(c.table[c.index])) + c.offset
	c.index++
	if c.index >= len(c.table) {
		c.index = 0
	}
	return ClampSample(math.Round(v), c.outMax)
}
