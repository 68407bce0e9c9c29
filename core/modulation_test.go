package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func benchModulation() ModulationConfig {
	return ModulationConfig{
		Frequency: 1000,
		Duty:      0.8,
		Mode:      CountSymmetric,
		ClockBase: DefaultClockBase,
		Refresh:   3.0,
		Epsilon:   0.05,
	}
}

func TestTimeBasePeriod(t *testing.T) {
	assert.Equal(t, uint32(50000), TimeBasePeriod(DefaultClockBase, 1000, CountSymmetric))
	assert.Equal(t, uint32(99999), TimeBasePeriod(DefaultClockBase, 1000, CountAsymmetric))

	// frequency 0 is treated as 1 Hz
	assert.Equal(t, uint32(50000000), TimeBasePeriod(DefaultClockBase, 0, CountSymmetric))
	assert.Equal(t, uint32(99999999), TimeBasePeriod(DefaultClockBase, 0, CountAsymmetric))

	// integer truncation
	assert.Equal(t, uint32(16666), TimeBasePeriod(DefaultClockBase, 3000, CountSymmetric))
}

func TestCompareValue(t *testing.T) {
	assert.Equal(t, uint32(25000), CompareValue(50000, 0.5, CountSymmetric))
	assert.Equal(t, uint32(50000), CompareValue(50000, 0, CountSymmetric))
	assert.Equal(t, uint32(0), CompareValue(50000, 1, CountSymmetric))

	// out-of-range duty is clamped
	assert.Equal(t, uint32(0), CompareValue(50000, 1.5, CountSymmetric))
	assert.Equal(t, uint32(50000), CompareValue(50000, -0.2, CountSymmetric))

	assert.Equal(t, uint32(49999), CompareValue(99999, 0.5, CountAsymmetric))
	assert.Equal(t, uint32(0), CompareValue(99999, 1, CountAsymmetric), "floored at 0")
}

func TestCompareValueClampsDuty(t *testing.T) {
	for _, mode := range []CountMode{CountSymmetric, CountAsymmetric} {
		t.Run(mode.String(), func(t *testing.T) {
			period := TimeBasePeriod(DefaultClockBase, 1000, mode)
			assert.Equal(t, CompareValue(period, 1, mode), CompareValue(period, 1.3, mode))
			assert.Equal(t, CompareValue(period, 0, mode), CompareValue(period, -0.2, mode))
		})
	}
}

func TestPhaseCounts(t *testing.T) {
	assert.Equal(t, uint32(12500), PhaseCounts(50000, 0.25))
	assert.Equal(t, uint32(50000), PhaseCounts(50000, 2))
	assert.Equal(t, uint32(0), PhaseCounts(50000, -1))
}

func TestComputeBenchSetting(t *testing.T) {
	s := benchModulation().Compute()

	assert.Equal(t, CountSymmetric, s.Mode)
	assert.Equal(t, uint32(50000), s.Period)
	// 50000·(1−0.8) truncates to 9999 in binary floating point
	assert.InDelta(t, 10000, s.CompareA, 1)
	assert.Equal(t, s.CompareA, s.CompareB)
	assert.Zero(t, s.Phase)
}

func TestSchedulerDueWindow(t *testing.T) {
	s := NewScheduler(benchModulation())

	assert.True(t, s.Due(0))
	assert.True(t, s.Due(0.049))
	assert.False(t, s.Due(0.05))
	assert.False(t, s.Due(1.5))
	assert.True(t, s.Due(3.01))
	assert.True(t, s.Due(6.0))
}

func TestSchedulerDisabledWithoutRefresh(t *testing.T) {
	cfg := benchModulation()
	cfg.Refresh = 0
	assert.False(t, NewScheduler(cfg).Due(0))
}

// countApplies drives the scheduler the way the dispatcher does for d of
// simulated time and returns how many ticks reapplied
func countApplies(t *testing.T, cfg ModulationConfig, d time.Duration) int {
	t.Helper()
	period := 100 * time.Microsecond
	clock := NewElapsedClock(period)
	s := NewScheduler(cfg)

	applied := 0
	for i := 0; i < int(d/period); i++ {
		clock.Advance()
		if s.Due(clock.Elapsed()) {
			_, err := s.Apply(nil)
			require.NoError(t, err)
			applied++
		}
	}
	assert.Equal(t, uint32(applied), s.Applied())
	return applied
}

func TestSchedulerReappliesEveryTickInWindow(t *testing.T) {
	// two windows of 50 ms at a 100 µs tick: about 500 applies each
	n := countApplies(t, benchModulation(), 4*time.Second)
	assert.InDelta(t, 999, n, 3)
}

func TestSchedulerOncePerWindow(t *testing.T) {
	cfg := benchModulation()
	cfg.OncePerWindow = true
	assert.Equal(t, 2, countApplies(t, cfg, 4*time.Second))
}

func TestSchedulerApplyOrder(t *testing.T) {
	log := &callLog{}
	cfg := benchModulation()
	cfg.Duty = 0.5
	cfg.PhaseShift = 0.25
	s := NewScheduler(cfg)

	setting, err := s.Apply(&recordingPWM{log: log})
	require.NoError(t, err)
	assert.Equal(t, setting, s.Last())
	assert.Equal(t, []string{
		"timebase symmetric 50000",
		"compare 0 25000",
		"compare 1 25000",
		"phase 12500",
	}, log.calls)
}

func TestSchedulerApplyError(t *testing.T) {
	log := &callLog{}
	s := NewScheduler(benchModulation())

	_, err := s.Apply(&recordingPWM{log: log, fail: true})
	assert.ErrorIs(t, err, errInjected)
	assert.Len(t, log.calls, 1, "stops at the failing call")
	assert.Equal(t, uint32(1), s.Applied())
}

// measureDuty steps a TimeBase through one full cycle and returns the
// fraction of steps where output A is high, checking B is its complement
func measureDuty(t *testing.T, s PWMSetting) float64 {
	t.Helper()
	var tb TimeBase
	tb.Configure(s.Mode, s.Period)

	high := 0
	n := int(tb.CycleLength())
	for i := 0; i < n; i++ {
		a, b := s.Levels(tb.Step())
		require.NotEqual(t, a, b, "outputs must be complementary")
		if a {
			high++
		}
	}
	return float64(high) / float64(n)
}

func TestComplementaryDutySymmetric(t *testing.T) {
	cfg := ModulationConfig{Frequency: 500000, Duty: 0.75, Mode: CountSymmetric, ClockBase: DefaultClockBase}
	s := cfg.Compute()
	require.Equal(t, uint32(100), s.Period)
	require.Equal(t, uint32(25), s.CompareA)

	assert.InDelta(t, 0.75, measureDuty(t, s), 0.01)
}

func TestComplementaryDutyAsymmetric(t *testing.T) {
	cfg := ModulationConfig{Frequency: 1000000, Duty: 0.75, Mode: CountAsymmetric, ClockBase: DefaultClockBase}
	s := cfg.Compute()
	require.Equal(t, uint32(99), s.Period)
	require.Equal(t, uint32(24), s.CompareA)

	assert.InDelta(t, 0.75, measureDuty(t, s), 0.001)
}

func TestComplementaryDutyExtremes(t *testing.T) {
	full := ModulationConfig{Frequency: 500000, Duty: 1, Mode: CountSymmetric, ClockBase: DefaultClockBase}.Compute()
	assert.InDelta(t, 1.0, measureDuty(t, full), 0.01)

	off := ModulationConfig{Frequency: 500000, Duty: 0, Mode: CountSymmetric, ClockBase: DefaultClockBase}.Compute()
	assert.Zero(t, measureDuty(t, off))
}

func TestTimeBasePhaseLoad(t *testing.T) {
	var tb TimeBase
	tb.Configure(CountSymmetric, 100)
	tb.SetCounter(40)
	assert.Equal(t, uint32(40), tb.Counter())
	assert.Equal(t, uint32(41), tb.Step())

	tb.SetCounter(500)
	assert.Equal(t, uint32(100), tb.Counter(), "clamped to the period")
}

func TestCountModeString(t *testing.T) {
	assert.Equal(t, "symmetric", CountSymmetric.String())
	assert.Equal(t, "asymmetric", CountAsymmetric.String())
	assert.Equal(t, "unknown", CountMode(9).String())
}
