package hosted

import (
	"time"

	"wavescope/config"
	"wavescope/core"
)

// Simulator runs the engine in virtual time. The tick and every conversion
// completion are timers on one core.TimerList, so a run is deterministic and
// a conversion slower than the tick period shows up as late conversions.
type Simulator struct {
	engine  *core.Engine
	bench   *Bench
	timers  core.TimerList
	tick    core.Timer
	period  uint64 // ns
	latency uint64 // ns
	now     uint64 // ns
	free    []*core.Timer
}

// NewSimulator builds and starts an engine for cfg in virtual time
func NewSimulator(cfg *config.Config, opts Options) (*Simulator, error) {
	ec, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	latency := cfg.ConversionLatency()
	if opts.Latency > 0 {
		latency = opts.Latency
	}

	s := &Simulator{
		bench:   newBench(cfg, opts),
		period:  uint64(ec.TickPeriod),
		latency: uint64(latency),
	}

	s.engine, err = core.NewEngine(ec, s.bench.platform(core.TriggerFunc(s.startConversion), nil, nil))
	if err != nil {
		return nil, err
	}
	if err := s.engine.Start(); err != nil {
		return nil, err
	}

	s.tick = core.Timer{WakeTime: s.period, Handler: s.onTick}
	s.timers.Schedule(&s.tick)
	return s, nil
}

func (s *Simulator) onTick(t *core.Timer) uint8 {
	s.engine.Tick()
	t.WakeTime += s.period
	return core.SF_RESCHEDULE
}

// startConversion schedules the matching completion latency ns from now
func (s *Simulator) startConversion() {
	var t *core.Timer
	if n := len(s.free); n > 0 {
		t = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		t = &core.Timer{Handler: s.onComplete}
	}
	t.WakeTime = s.timers.Now() + s.latency
	s.timers.Schedule(t)
}

func (s *Simulator) onComplete(t *core.Timer) uint8 {
	s.engine.ConversionComplete()
	s.free = append(s.free, t)
	return core.SF_DONE
}

// Run advances virtual time by d, firing every timer due on the way
func (s *Simulator) Run(d time.Duration) core.Stats {
	end := s.now + uint64(d)
	for {
		next, ok := s.timers.NextWake()
		if !ok || next > end {
			break
		}
		s.timers.Dispatch(next)
	}
	s.now = end
	return s.engine.Stats()
}

// Now returns the virtual time
func (s *Simulator) Now() time.Duration {
	return time.Duration(s.now)
}

// Engine returns the simulated engine
func (s *Simulator) Engine() *core.Engine {
	return s.engine
}

// Bench returns the emulated peripherals
func (s *Simulator) Bench() *Bench {
	return s.bench
}

// Stats reads the engine counters
func (s *Simulator) Stats() core.Stats {
	return s.engine.Stats()
}

// Config returns the engine configuration
func (s *Simulator) Config() core.EngineConfig {
	return s.engine.Config()
}

// Snapshot copies an acquisition ring oldest-first. The simulator is single
// threaded, so this reads the ring directly.
func (s *Simulator) Snapshot(id core.ChannelID, dst []core.Sample) ([]core.Sample, int, error) {
	return s.engine.Snapshot(id, dst)
}
