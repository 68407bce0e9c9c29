package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid engine configuration")

// SynthesisMethod selects how a channel produces its waveform
type SynthesisMethod uint8

const (
	MethodDirect   SynthesisMethod = iota // private phase accumulator
	MethodTimeBase                        // sin(2π·f·elapsed)
	MethodTable                           // precomputed lookup table
)

// SynthesisConfig describes one analog output channel
type SynthesisConfig struct {
	ID        ChannelID
	Method    SynthesisMethod
	Frequency float64 // Hz
	Amplitude float64 // output swing in codes
	Offset    float64 // DC bias in codes
	OutMax    Sample  // upper output bound

	// Increment overrides the phase increment derived from Frequency
	// (direct method only)
	Increment float64

	// Table method
	TableSize int
	TableGain float64
	Transform SampleTransform
}

// AcquisitionConfig describes one acquisition channel
type AcquisitionConfig struct {
	ID       ChannelID
	Capacity int
}

// EngineConfig is the static configuration supplied once at startup
type EngineConfig struct {
	TickPeriod      time.Duration
	Synthesis       []SynthesisConfig
	Modulation      *ModulationConfig
	Acquisition     []AcquisitionConfig
	ResolutionBits  uint8
	LivenessDivider uint32
}

// Platform holds the collaborators the engine drives. Any may be nil.
type Platform struct {
	Sink    OutputSink
	PWM     PWMDriver
	Source  ConversionSource
	Trigger ConversionTrigger
	Status  StatusPin

	Now            func() time.Duration
	OnDeadlineMiss DeadlineHook
}

// Stats is a point-in-time view of the engine counters
type Stats struct {
	Ticks              uint64
	Elapsed            float64 // seconds, ticks × period
	DeadlineMisses     uint32
	ModulationApplied  uint32
	ConversionsStart   uint32
	Conversions        uint32
	LateConversions    uint32
	DroppedConversions uint32 // started but never completed
	ReadErrors         uint32
	SinkErrors         uint32
	PWMErrors          uint32
}

// Engine wires the tick dispatcher and the acquisition handler from one
// configuration. All state is created here and lives for the process.
type Engine struct {
	cfg         EngineConfig
	dispatcher  *Dispatcher
	acquisition *AcquisitionHandler
	scheduler   *Scheduler
	liveness    *Liveness
	buffers     map[ChannelID]*SampleBuffer
	pwm         PWMDriver
}

// Validate checks an engine configuration
func (c EngineConfig) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick period must be positive", ErrInvalidConfig)
	}
	seen := make(map[ChannelID]bool)
	for _, s := range c.Synthesis {
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate synthesis channel %d", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = true
		if s.OutMax == 0 {
			return fmt.Errorf("%w: channel %d has zero output bound", ErrInvalidConfig, s.ID)
		}
		if s.Frequency < 0 || s.Increment < 0 {
			return fmt.Errorf("%w: channel %d has negative frequency", ErrInvalidConfig, s.ID)
		}
		if s.Method == MethodTable {
			if s.TableSize < 1 {
				return fmt.Errorf("%w: channel %d table size must be at least 1", ErrInvalidConfig, s.ID)
			}
			if err := s.Transform.Validate(); err != nil {
				return fmt.Errorf("%w: channel %d: %v", ErrInvalidConfig, s.ID, err)
			}
		}
	}
	seen = make(map[ChannelID]bool)
	for _, a := range c.Acquisition {
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate acquisition channel %d", ErrInvalidConfig, a.ID)
		}
		seen[a.ID] = true
		if a.Capacity < 1 {
			return fmt.Errorf("%w: acquisition channel %d: %v", ErrInvalidConfig, a.ID, ErrInvalidCapacity)
		}
	}
	if m := c.Modulation; m != nil {
		if m.ClockBase == 0 {
			return fmt.Errorf("%w: modulation clock base must be positive", ErrInvalidConfig)
		}
		if m.Refresh < 0 || m.Epsilon < 0 {
			return fmt.Errorf("%w: modulation cadence must not be negative", ErrInvalidConfig)
		}
	}
	return nil
}

// NewChannel builds a synthesis channel for the given tick period
func NewChannel(s SynthesisConfig, tickPeriod time.Duration) Channel {
	switch s.Method {
	case MethodTimeBase:
		return NewTimeBaseChannel(s.ID, s.Frequency, s.Amplitude, s.Offset, s.OutMax)
	case MethodTable:
		table := BuildSineTable(s.TableSize, s.Amplitude, s.TableGain, s.Transform)
		return NewTableChannel(s.ID, table, s.Transform, s.Offset, s.OutMax)
	default:
		inc := s.Increment
		if inc == 0 {
			inc = PhaseIncrement(s.Frequency, tickPeriod.Seconds())
		}
		return NewPhaseChannel(s.ID, inc, s.Amplitude, s.Offset, s.OutMax)
	}
}

// NewEngine validates the configuration and creates every piece of state
func NewEngine(cfg EngineConfig, p Platform) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		buffers: make(map[ChannelID]*SampleBuffer),
		pwm:     p.PWM,
	}

	channels := make([]Channel, 0, len(cfg.Synthesis))
	for _, s := range cfg.Synthesis {
		channels = append(channels, NewChannel(s, cfg.TickPeriod))
	}

	acqChannels := make([]*AcquisitionChannel, 0, len(cfg.Acquisition))
	for _, a := range cfg.Acquisition {
		buf, err := NewSampleBuffer(a.Capacity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.buffers[a.ID] = buf
		acqChannels = append(acqChannels, &AcquisitionChannel{ID: a.ID, Buffer: buf})
	}

	var source ConversionSource = p.Source
	if source == nil {
		source = nullSource{}
	}
	e.acquisition = NewAcquisitionHandler(source, cfg.ResolutionBits, acqChannels...)

	if cfg.Modulation != nil {
		e.scheduler = NewScheduler(*cfg.Modulation)
	}
	e.liveness = NewLiveness(cfg.LivenessDivider, p.Status)

	// the tick records every start before handing it to the platform
	acq := e.acquisition
	platformTrigger := p.Trigger
	trigger := TriggerFunc(func() {
		acq.MarkStarted()
		if platformTrigger != nil {
			platformTrigger.StartConversion()
		}
	})

	e.dispatcher = NewDispatcher(DispatcherConfig{
		Period:         cfg.TickPeriod,
		Channels:       channels,
		Sink:           p.Sink,
		Scheduler:      e.scheduler,
		PWM:            p.PWM,
		Liveness:       e.liveness,
		Trigger:        trigger,
		Now:            p.Now,
		OnDeadlineMiss: p.OnDeadlineMiss,
	})
	return e, nil
}

// Start performs the initial PWM load, arms acquisition and starts the
// dispatcher. Call once, before the platform delivers ticks.
func (e *Engine) Start() error {
	if e.scheduler != nil && e.pwm != nil {
		cfg := e.scheduler.Config()
		s := cfg.Compute()
		if err := e.pwm.ConfigureTimeBase(s.Mode, s.Period); err != nil {
			return fmt.Errorf("initial PWM load: %w", err)
		}
		if err := e.pwm.SetCompare(PWMOutputA, s.CompareA); err != nil {
			return fmt.Errorf("initial PWM load: %w", err)
		}
		if err := e.pwm.SetCompare(PWMOutputB, s.CompareB); err != nil {
			return fmt.Errorf("initial PWM load: %w", err)
		}
		if err := e.pwm.SetPhaseShift(0); err != nil {
			return fmt.Errorf("initial PWM load: %w", err)
		}
	}
	e.acquisition.Arm()
	e.dispatcher.Start()
	return nil
}

// Tick is the periodic timer handler
func (e *Engine) Tick() {
	e.dispatcher.OnTick()
}

// ConversionComplete is the conversion-complete handler
func (e *Engine) ConversionComplete() {
	e.acquisition.OnConversionComplete()
}

// ConversionDropped records a started conversion whose completion the
// platform discarded
func (e *Engine) ConversionDropped() {
	e.acquisition.MarkDropped()
}

// Idle is the explicit idle state: it performs no work and touches no engine
// state, returning when ctx is done
func (e *Engine) Idle(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Buffer returns the acquisition ring for a channel
func (e *Engine) Buffer(id ChannelID) (*SampleBuffer, bool) {
	b, ok := e.buffers[id]
	return b, ok
}

// Snapshot copies channel id's ring oldest-first into dst
func (e *Engine) Snapshot(id ChannelID, dst []Sample) ([]Sample, int, error) {
	b, ok := e.buffers[id]
	if !ok {
		return dst, 0, fmt.Errorf("%w %d", ErrUnknownChannel, id)
	}
	values, index := b.Snapshot(dst)
	return values, index, nil
}

// Config returns the configuration the engine was built from
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Dispatcher returns the tick dispatcher
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Acquisition returns the conversion-complete handler
func (e *Engine) Acquisition() *AcquisitionHandler {
	return e.acquisition
}

// Scheduler returns the modulation scheduler, nil when modulation is off
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// Liveness returns the liveness indicator
func (e *Engine) Liveness() *Liveness {
	return e.liveness
}

// Stats reads the engine counters. Safe from any context.
func (e *Engine) Stats() Stats {
	ticks := e.dispatcher.Ticks()
	st := Stats{
		Ticks:              ticks,
		Elapsed:            float64(ticks) * e.cfg.TickPeriod.Seconds(),
		DeadlineMisses:     e.dispatcher.DeadlineMisses(),
		ConversionsStart:   e.acquisition.Started(),
		Conversions:        e.acquisition.Completed(),
		LateConversions:    e.acquisition.LateConversions(),
		DroppedConversions: e.acquisition.Dropped(),
		ReadErrors:         e.acquisition.ReadErrors(),
		SinkErrors:         e.dispatcher.SinkErrors(),
		PWMErrors:          e.dispatcher.PWMErrors(),
	}
	if e.scheduler != nil {
		st.ModulationApplied = e.scheduler.Applied()
	}
	return st
}

// DumpTiming writes both event rings through w
func (e *Engine) DumpTiming(w DebugWriter) {
	e.dispatcher.Timing().Dump("tick", w)
	e.acquisition.Timing().Dump("acquisition", w)
}

type nullSource struct{}

func (nullSource) ReadResult(ChannelID) (uint16, error) { return 0, nil }
