// Tick dispatching
// The fixed-period handler: synthesis, elapsed time, modulation cadence,
// liveness and conversion start, in that order, with no blocking
package core

import (
	"sync/atomic"
	"time"
)

// Dispatcher states
const (
	StateConfiguring = 0
	StateRunning     = 1
)

// DeadlineHook is called from the tick context when a tick overran its period
type DeadlineHook func(tick uint64, took time.Duration)

// Dispatcher is the tick handler. It owns the synthesis channels, the
// elapsed-time accumulator, the modulation scheduler and the liveness
// indicator; nothing else writes them.
type Dispatcher struct {
	channels  []Channel
	sink      OutputSink
	clock     *ElapsedClock
	scheduler *Scheduler
	pwm       PWMDriver
	liveness  *Liveness
	trigger   ConversionTrigger

	period time.Duration
	now    func() time.Duration // optional monotonic clock for deadline checks
	onMiss DeadlineHook

	state      atomic.Uint32
	ticks      atomic.Uint64
	misses     atomic.Uint32
	sinkErrors atomic.Uint32
	pwmErrors  atomic.Uint32

	timing TimingRing
}

// DispatcherConfig collects the dispatcher's collaborators. Only Period is
// required; nil collaborators are skipped.
type DispatcherConfig struct {
	Period    time.Duration
	Channels  []Channel
	Sink      OutputSink
	Scheduler *Scheduler
	PWM       PWMDriver
	Liveness  *Liveness
	Trigger   ConversionTrigger

	// Now, when set, is read at the start and end of every tick; a tick
	// taking longer than Period counts as a deadline miss
	Now            func() time.Duration
	OnDeadlineMiss DeadlineHook
}

// NewDispatcher creates a dispatcher in the configuring state
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		channels:  cfg.Channels,
		sink:      cfg.Sink,
		clock:     NewElapsedClock(cfg.Period),
		scheduler: cfg.Scheduler,
		pwm:       cfg.PWM,
		liveness:  cfg.Liveness,
		trigger:   cfg.Trigger,
		period:    cfg.Period,
		now:       cfg.Now,
		onMiss:    cfg.OnDeadlineMiss,
	}
}

// Start moves the dispatcher to the running state
func (d *Dispatcher) Start() {
	d.state.Store(StateRunning)
}

// Running reports whether ticks are being handled
func (d *Dispatcher) Running() bool {
	return d.state.Load() == StateRunning
}

// OnTick is the periodic handler. Ticks delivered before Start are ignored.
func (d *Dispatcher) OnTick() {
	if d.state.Load() != StateRunning {
		return
	}
	var begin time.Duration
	if d.now != nil {
		begin = d.now()
	}
	tick := d.ticks.Load() + 1

	// (a) synthesis
	elapsed := d.clock.Elapsed()
	for _, ch := range d.channels {
		v := ch.Step(elapsed)
		if d.sink == nil {
			continue
		}
		if err := d.sink.WriteSample(ch.ID(), v); err != nil {
			d.sinkErrors.Add(1)
			d.timing.Record(EvtSinkError, ch.ID(), uint32(tick), uint32(v), 0)
		}
	}

	// (b) elapsed time
	d.clock.Advance()

	// (c) modulation cadence
	if d.scheduler != nil && d.scheduler.Due(d.clock.Elapsed()) {
		setting, err := d.scheduler.Apply(d.pwm)
		if err != nil {
			d.pwmErrors.Add(1)
		}
		d.timing.Record(EvtModulation, 0, uint32(tick), setting.Period, setting.CompareA)
	}

	if d.liveness != nil {
		d.liveness.Tick()
	}

	// (d) conversion start
	if d.trigger != nil {
		d.trigger.StartConversion()
	}

	d.ticks.Store(tick)

	if d.now == nil {
		return
	}
	if took := d.now() - begin; took > d.period {
		d.misses.Add(1)
		d.timing.Record(EvtDeadlineMiss, 0, uint32(tick),
			uint32(took/time.Microsecond), uint32(d.period/time.Microsecond))
		if d.onMiss != nil {
			d.onMiss(tick, took)
		}
	}
}

// Channels returns the synthesis channels in update order
func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

// Clock returns the elapsed-time accumulator. Read it only from the tick
// context.
func (d *Dispatcher) Clock() *ElapsedClock {
	return d.clock
}

// Period returns the tick period
func (d *Dispatcher) Period() time.Duration {
	return d.period
}

// Ticks returns the number of handled ticks
func (d *Dispatcher) Ticks() uint64 {
	return d.ticks.Load()
}

// DeadlineMisses returns how many ticks overran the period
func (d *Dispatcher) DeadlineMisses() uint32 {
	return d.misses.Load()
}

// SinkErrors returns how many output writes failed
func (d *Dispatcher) SinkErrors() uint32 {
	return d.sinkErrors.Load()
}

// PWMErrors returns how many modulation pushes failed
func (d *Dispatcher) PWMErrors() uint32 {
	return d.pwmErrors.Load()
}

// Timing returns the dispatcher's event ring
func (d *Dispatcher) Timing() *TimingRing {
	return &d.timing
}
