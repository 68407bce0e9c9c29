package core

import (
	"errors"
	"fmt"
	"time"
)

var errInjected = errors.New("injected failure")

// callLog records collaborator calls in order
type callLog struct {
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

type recordingPWM struct {
	log  *callLog
	fail bool
}

func (p *recordingPWM) ConfigureTimeBase(mode CountMode, period uint32) error {
	p.log.add("timebase %s %d", mode, period)
	if p.fail {
		return errInjected
	}
	return nil
}

func (p *recordingPWM) SetCompare(out PWMOutput, value uint32) error {
	p.log.add("compare %d %d", out, value)
	return nil
}

func (p *recordingPWM) SetPhaseShift(counts uint32) error {
	p.log.add("phase %d", counts)
	return nil
}

type countingPin struct {
	toggles int
}

func (p *countingPin) Toggle() { p.toggles++ }

// lastValueSink keeps the latest sample per channel
type lastValueSink struct {
	last   map[ChannelID]Sample
	writes int
	fail   bool
}

func newLastValueSink() *lastValueSink {
	return &lastValueSink{last: make(map[ChannelID]Sample)}
}

func (s *lastValueSink) WriteSample(ch ChannelID, v Sample) error {
	if s.fail {
		return errInjected
	}
	s.last[ch] = v
	s.writes++
	return nil
}

// mapSource returns fixed per-channel results
type mapSource struct {
	values map[ChannelID]uint16
	fail   map[ChannelID]bool
}

func (s *mapSource) ReadResult(ch ChannelID) (uint16, error) {
	if s.fail[ch] {
		return 0, errInjected
	}
	return s.values[ch], nil
}

// fakeClock advances by step every time it is read
type fakeClock struct {
	now  time.Duration
	step time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.now += c.step
	return c.now
}
