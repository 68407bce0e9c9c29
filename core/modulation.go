// PWM modulation scheduling
// Periodically recomputes time-base period, compare values and phase for a
// complementary PWM pair from the tick context
package core

import (
	"math"
	"sync/atomic"
)

// CountMode is the time-base counting geometry
type CountMode uint8

const (
	CountSymmetric  CountMode = iota // up-down (triangular)
	CountAsymmetric                  // up only (sawtooth)
)

func (m CountMode) String() string {
	switch m {
	case CountSymmetric:
		return "symmetric"
	case CountAsymmetric:
		return "asymmetric"
	}
	return "unknown"
}

// PWMOutput selects one output of a complementary pair
type PWMOutput uint8

const (
	PWMOutputA PWMOutput = 0 // primary
	PWMOutputB PWMOutput = 1 // complement of A
)

// ModulationConfig holds the static PWM reconfiguration parameters
type ModulationConfig struct {
	Frequency  uint32    // target PWM frequency in Hz, clamped to >= 1
	Duty       float64   // active fraction, clamped to [0, 1]
	PhaseShift float64   // phase as a fraction of the period, clamped to [0, 1]
	Mode       CountMode // counting geometry
	ClockBase  uint32    // time-base clock in Hz

	Refresh float64 // reapply cadence in seconds; 0 disables reapplication
	Epsilon float64 // window after each cadence boundary in which a reapply is due

	// OncePerWindow applies at most once per refresh window. The default
	// reapplies on every tick that falls inside the window.
	OncePerWindow bool
}

// PWMSetting is one computed set of time-base values
type PWMSetting struct {
	Mode     CountMode
	Period   uint32
	CompareA uint32
	CompareB uint32
	Phase    uint32
}

// Levels returns the logic levels of outputs A and B for a time-base counter
// value. A is active above the compare value: it rises on the up-count match
// and falls on the down-count match (symmetric) or at wrap (asymmetric).
// B uses the inverse action mapping on the same compare value, so it is
// always the complement of A.
func (s PWMSetting) Levels(counter uint32) (a, b bool) {
	a = counter > s.CompareA
	return a, !a
}

// TimeBasePeriod converts a target frequency to a time-base period with
// integer truncation: clockBase/(2·f) symmetric, clockBase/f − 1 asymmetric
func TimeBasePeriod(clockBase, frequency uint32, mode CountMode) uint32 {
	if frequency < 1 {
		frequency = 1
	}
	if mode == CountSymmetric {
		return uint32(uint64(clockBase) / (2 * uint64(frequency)))
	}
	q := clockBase / frequency
	if q == 0 {
		return 0
	}
	return q - 1
}

// ClampUnit bounds f into [0, 1]; NaN maps to 0
func ClampUnit(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// CompareValue returns the comparator threshold for a duty cycle:
// period·(1−duty) symmetric, (period+1)·(1−duty) − 1 asymmetric, truncated.
// The asymmetric form is floored at 0 for duty 1.
func CompareValue(period uint32, duty float64, mode CountMode) uint32 {
	duty = ClampUnit(duty)
	if mode == CountSymmetric {
		return uint32(float64(period) * (1 - duty))
	}
	v := (float64(period)+1)*(1-duty) - 1
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// PhaseCounts converts a phase fraction into time-base counts
func PhaseCounts(period uint32, fraction float64) uint32 {
	return uint32(float64(period) * ClampUnit(fraction))
}

// Compute returns the setting for a configuration without touching hardware
func (c ModulationConfig) Compute() PWMSetting {
	period := TimeBasePeriod(c.ClockBase, c.Frequency, c.Mode)
	cmp := CompareValue(period, c.Duty, c.Mode)
	return PWMSetting{
		Mode:     c.Mode,
		Period:   period,
		CompareA: cmp,
		CompareB: cmp,
		Phase:    PhaseCounts(period, c.PhaseShift),
	}
}

// Scheduler decides when the PWM is reconfigured and pushes the setting.
// Owned by the tick dispatcher.
type Scheduler struct {
	cfg      ModulationConfig
	inWindow bool
	last     PWMSetting
	applied  atomic.Uint32
}

// NewScheduler creates a scheduler for the given configuration
func NewScheduler(cfg ModulationConfig) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Config returns the scheduler configuration
func (s *Scheduler) Config() ModulationConfig {
	return s.cfg
}

// Due reports whether elapsed lies within Epsilon after a Refresh boundary
// (elapsed mod Refresh < Epsilon). Nothing records that the window was
// already served, so every tick inside it is due unless OncePerWindow is set.
func (s *Scheduler) Due(elapsed float64) bool {
	if s.cfg.Refresh <= 0 {
		return false
	}
	due := math.Mod(elapsed, s.cfg.Refresh) < s.cfg.Epsilon
	if !s.cfg.OncePerWindow {
		return due
	}
	if !due {
		s.inWindow = false
		return false
	}
	if s.inWindow {
		return false
	}
	s.inWindow = true
	return true
}

// Apply computes the setting and pushes it to the driver: time base, both
// compare values, then phase. A nil driver only computes.
func (s *Scheduler) Apply(driver PWMDriver) (PWMSetting, error) {
	setting := s.cfg.Compute()
	s.last = setting
	s.applied.Add(1)

	if driver == nil {
		return setting, nil
	}
	if err := driver.ConfigureTimeBase(setting.Mode, setting.Period); err != nil {
		return setting, err
	}
	if err := driver.SetCompare(PWMOutputA, setting.CompareA); err != nil {
		return setting, err
	}
	if err := driver.SetCompare(PWMOutputB, setting.CompareB); err != nil {
		return setting, err
	}
	return setting, driver.SetPhaseShift(setting.Phase)
}

// Applied returns how many times Apply has run
func (s *Scheduler) Applied() uint32 {
	return s.applied.Load()
}

// Last returns the most recently applied setting
func (s *Scheduler) Last() PWMSetting {
	return s.last
}

// TimeBase emulates a PWM time-base counter in either geometry
type TimeBase struct {
	mode    CountMode
	period  uint32
	counter uint32
	up      bool
}

// Configure sets geometry and period and restarts the counter at zero
func (t *TimeBase) Configure(mode CountMode, period uint32) {
	t.mode = mode
	t.period = period
	t.counter = 0
	t.up = true
}

// SetCounter loads the counter, as a phase shift does on sync
func (t *TimeBase) SetCounter(counts uint32) {
	if counts > t.period {
		counts = t.period
	}
	t.counter = counts
}

// Counter returns the current counter value
func (t *TimeBase) Counter() uint32 {
	return t.counter
}

// CycleLength returns the number of steps in one PWM period
func (t *TimeBase) CycleLength() uint32 {
	if t.mode == CountSymmetric {
		return 2 * t.period
	}
	return t.period + 1
}

// Step advances the counter by one time-base clock and returns the new value
func (t *TimeBase) Step() uint32 {
	if t.period == 0 {
		return 0
	}
	if t.mode == CountAsymmetric {
		if t.counter >= t.period {
			t.counter = 0
		} else {
			t.counter++
		}
		return t.counter
	}
	if t.up {
		t.counter++
		if t.counter >= t.period {
			t.up = false
		}
	} else {
		t.counter--
		if t.counter == 0 {
			t.up = true
		}
	}
	return t.counter
}
