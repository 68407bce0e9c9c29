package hosted

import (
	"fmt"
	"time"

	"wavescope/config"
	"wavescope/core"
)

// Options adjusts how a hosted bench is assembled
type Options struct {
	// TraceLen is the number of output samples recorded per channel
	TraceLen int

	// Output receives every synthesized sample after recording, e.g. an
	// AudioSink. May be nil.
	Output core.OutputSink

	// Report receives liveness toggles. May be nil.
	Report core.DebugWriter

	// Latency overrides the configured conversion latency when non-zero
	Latency time.Duration
}

// Bench is the set of emulated peripherals behind one engine
type Bench struct {
	Sink   *RecordingSink
	Source *LoopbackSource
	PWM    *MemoryPWM
	Status *StatusPin
}

func newBench(cfg *config.Config, opts Options) *Bench {
	sink := NewRecordingSink(opts.TraceLen, opts.Output)
	mapping := make(map[core.ChannelID]core.ChannelID)
	for _, a := range cfg.Acquisition {
		mapping[core.ChannelID(a.ID)] = core.ChannelID(cfg.SourceFor(a.ID))
	}
	return &Bench{
		Sink:   sink,
		Source: NewLoopbackSource(sink, mapping),
		PWM:    &MemoryPWM{},
		Status: NewStatusPin(opts.Report),
	}
}

func (b *Bench) platform(trigger core.ConversionTrigger, now func() time.Duration, onMiss core.DeadlineHook) core.Platform {
	return core.Platform{
		Sink:           b.Sink,
		PWM:            b.PWM,
		Source:         b.Source,
		Trigger:        trigger,
		Status:         b.Status,
		Now:            now,
		OnDeadlineMiss: onMiss,
	}
}

func engineConfig(cfg *config.Config) (core.EngineConfig, error) {
	ec, err := cfg.EngineConfig()
	if err != nil {
		return core.EngineConfig{}, fmt.Errorf("hosted: %w", err)
	}
	return ec, nil
}
