// Package hosted runs the engine on a general-purpose OS: a virtual-time
// simulator for deterministic runs and a real-time runtime built from
// goroutines. The devices here stand in for the converter and PWM
// peripherals.
package hosted

import (
	"sync"
	"sync/atomic"

	"wavescope/core"
)

const maxChannels = 256

// RecordingSink keeps the latest output of every synthesis channel and an
// optional bounded trace per channel. WriteSample runs on the tick
// goroutine; Last is safe from any goroutine.
type RecordingSink struct {
	last   [maxChannels]atomic.Uint32
	writes atomic.Uint64

	traceLen int
	mu       sync.Mutex
	traces   map[core.ChannelID][]core.Sample

	next core.OutputSink
}

// NewRecordingSink creates a sink tracing up to traceLen samples per channel
// and forwarding every sample to next when it is not nil
func NewRecordingSink(traceLen int, next core.OutputSink) *RecordingSink {
	return &RecordingSink{
		traceLen: traceLen,
		traces:   make(map[core.ChannelID][]core.Sample),
		next:     next,
	}
}

func (s *RecordingSink) WriteSample(ch core.ChannelID, v core.Sample) error {
	s.last[ch].Store(uint32(v))
	s.writes.Add(1)

	if s.traceLen > 0 {
		s.mu.Lock()
		if t := s.traces[ch]; len(t) < s.traceLen {
			s.traces[ch] = append(t, v)
		}
		s.mu.Unlock()
	}

	if s.next != nil {
		return s.next.WriteSample(ch, v)
	}
	return nil
}

// Last returns the most recent sample written to ch
func (s *RecordingSink) Last(ch core.ChannelID) core.Sample {
	return core.Sample(s.last[ch].Load())
}

// Writes returns the total number of samples written
func (s *RecordingSink) Writes() uint64 {
	return s.writes.Load()
}

// Trace returns a copy of the first traced samples of ch
func (s *RecordingSink) Trace(ch core.ChannelID) []core.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Sample(nil), s.traces[ch]...)
}

// LoopbackSource feeds acquisition channels from synthesis outputs, the way
// the bench wires each DAC output into an ADC input
type LoopbackSource struct {
	sink    *RecordingSink
	mapping map[core.ChannelID]core.ChannelID
}

// NewLoopbackSource reads from sink. mapping routes acquisition channel to
// synthesis channel; unmapped channels read the synthesis channel with the
// same ID.
func NewLoopbackSource(sink *RecordingSink, mapping map[core.ChannelID]core.ChannelID) *LoopbackSource {
	return &LoopbackSource{sink: sink, mapping: mapping}
}

func (l *LoopbackSource) ReadResult(ch core.ChannelID) (uint16, error) {
	src, ok := l.mapping[ch]
	if !ok {
		src = ch
	}
	return uint16(l.sink.Last(src)), nil
}

// MemoryPWM records the PWM registers and mirrors them into an emulated
// time base
type MemoryPWM struct {
	mu       sync.Mutex
	setting  core.PWMSetting
	timeBase core.TimeBase
	loads    uint32
}

func (p *MemoryPWM) ConfigureTimeBase(mode core.CountMode, period uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setting.Mode = mode
	p.setting.Period = period
	p.timeBase.Configure(mode, period)
	p.loads++
	return nil
}

func (p *MemoryPWM) SetCompare(out core.PWMOutput, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if out == core.PWMOutputA {
		p.setting.CompareA = value
	} else {
		p.setting.CompareB = value
	}
	return nil
}

func (p *MemoryPWM) SetPhaseShift(counts uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setting.Phase = counts
	p.timeBase.SetCounter(counts)
	return nil
}

// Setting returns the current register values
func (p *MemoryPWM) Setting() core.PWMSetting {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setting
}

// Loads returns how many times the time base was configured
func (p *MemoryPWM) Loads() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// Duty steps the emulated time base through one full cycle and returns the
// measured active fraction of output A
func (p *MemoryPWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.timeBase.CycleLength()
	if n == 0 {
		return 0
	}
	high := uint32(0)
	for i := uint32(0); i < n; i++ {
		if a, _ := p.setting.Levels(p.timeBase.Step()); a {
			high++
		}
	}
	return float64(high) / float64(n)
}

// StatusPin counts toggles and optionally reports each one
type StatusPin struct {
	toggles atomic.Uint32
	level   atomic.Bool
	report  core.DebugWriter
}

// NewStatusPin creates a pin; report may be nil
func NewStatusPin(report core.DebugWriter) *StatusPin {
	return &StatusPin{report: report}
}

func (p *StatusPin) Toggle() {
	level := !p.level.Load()
	p.level.Store(level)
	p.toggles.Add(1)
	if p.report != nil {
		if level {
			p.report("[LIVE] on")
		} else {
			p.report("[LIVE] off")
		}
	}
}

// Toggles returns the number of toggles
func (p *StatusPin) Toggles() uint32 {
	return p.toggles.Load()
}

// Level returns the current pin level
func (p *StatusPin) Level() bool {
	return p.level.Load()
}
