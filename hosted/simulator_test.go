package hosted

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavescope/config"
	"wavescope/core"
	"wavescope/protocol"
)

func TestSimulatorCountsTicksAndConversions(t *testing.T) {
	sim, err := NewSimulator(config.DefaultConfig(), Options{})
	require.NoError(t, err)

	st := sim.Run(100 * time.Millisecond)
	assert.Equal(t, uint64(1000), st.Ticks)
	assert.Equal(t, uint32(1000), st.ConversionsStart)
	// the last completion lands 20us past the end of the run
	assert.Equal(t, uint32(999), st.Conversions)
	assert.Zero(t, st.LateConversions)
	assert.Zero(t, st.DeadlineMisses)
	assert.Equal(t, 100*time.Millisecond, sim.Now())

	st = sim.Run(100 * time.Millisecond)
	assert.Equal(t, uint64(2000), st.Ticks)
	assert.Equal(t, uint32(1999), st.Conversions)
}

func TestSimulatorIsDeterministic(t *testing.T) {
	run := func() []core.Sample {
		sim, err := NewSimulator(config.DefaultConfig(), Options{})
		require.NoError(t, err)
		sim.Run(50 * time.Millisecond)
		values, _, err := sim.Snapshot(1, nil)
		require.NoError(t, err)
		return values
	}
	assert.Equal(t, run(), run())
}

func TestSimulatorSlowConversionsAreLate(t *testing.T) {
	sim, err := NewSimulator(config.DefaultConfig(), Options{Latency: 150 * time.Microsecond})
	require.NoError(t, err)

	st := sim.Run(100 * time.Millisecond)
	require.NotZero(t, st.Conversions)
	assert.Equal(t, st.Conversions, st.LateConversions)
}

func TestSimulatorLoopbackFillsRings(t *testing.T) {
	sim, err := NewSimulator(config.DefaultConfig(), Options{TraceLen: 1000})
	require.NoError(t, err)
	sim.Run(100 * time.Millisecond)

	for _, ch := range []core.ChannelID{0, 1} {
		values, _, err := sim.Snapshot(ch, nil)
		require.NoError(t, err)
		require.Len(t, values, 167)

		// completion n reads what tick n wrote
		trace := sim.Bench().Sink.Trace(ch)
		require.Len(t, trace, 1000)
		assert.Equal(t, trace[999-167:999], values, "channel %d", ch)
	}

	_, _, err = sim.Snapshot(7, nil)
	assert.ErrorIs(t, err, core.ErrUnknownChannel)
}

func TestSimulatorModulation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Modulation.Refresh = 0.01
	cfg.Modulation.Epsilon = 0.00025
	sim, err := NewSimulator(cfg, Options{})
	require.NoError(t, err)

	pwm := sim.Bench().PWM
	assert.Equal(t, uint32(1), pwm.Loads(), "initial load")
	assert.InDelta(t, 0.8, pwm.Duty(), 0.01)

	st := sim.Run(100 * time.Millisecond)
	assert.NotZero(t, st.ModulationApplied)
	assert.Equal(t, st.ModulationApplied+1, pwm.Loads())

	s := pwm.Setting()
	assert.Equal(t, core.CountSymmetric, s.Mode)
	assert.Equal(t, s.CompareA, s.CompareB)
	assert.InDelta(t, 0.8, pwm.Duty(), 0.01)
}

func TestSimulatorLiveness(t *testing.T) {
	var reports []string
	cfg := config.DefaultConfig()
	cfg.LivenessDivider = 100
	sim, err := NewSimulator(cfg, Options{Report: func(s string) {
		reports = append(reports, s)
	}})
	require.NoError(t, err)

	sim.Run(100 * time.Millisecond)
	assert.Equal(t, uint32(10), sim.Bench().Status.Toggles())
	assert.False(t, sim.Bench().Status.Level())
	require.Len(t, reports, 10)
	assert.Equal(t, "[LIVE] on", reports[0])
	assert.Equal(t, "[LIVE] off", reports[1])
}

func TestSimulatorServesScopeCommands(t *testing.T) {
	sim, err := NewSimulator(config.DefaultConfig(), Options{})
	require.NoError(t, err)
	sim.Run(20 * time.Millisecond)

	var got []protocol.Response
	out := protocol.NewScratchOutput()
	send := func(id uint16, args func(protocol.OutputBuffer)) error {
		out.Reset()
		args(out)
		got = append(got, protocol.Response{ID: id, Args: append([]byte(nil), out.Result()...)})
		return nil
	}
	reg := core.NewCommandRegistry()
	core.RegisterScopeCommands(reg, sim, send)

	var empty []byte
	require.NoError(t, reg.Dispatch(protocol.CmdGetStats, &empty))
	require.Len(t, got, 1)
	assert.Equal(t, protocol.RespStats, got[0].ID)
	stats, err := protocol.DecodeStats(&got[0].Args)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), stats.Ticks)

	require.NoError(t, reg.Dispatch(protocol.CmdGetInfo, &empty))
	info, err := protocol.DecodeInfo(&got[1].Args)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), info.TickPeriodUS)
	assert.Equal(t, uint32(2), info.SynthCount)
	assert.Len(t, info.Acquisition, 2)
}

func TestNewSimulatorRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels[1].ID = 0
	_, err := NewSimulator(cfg, Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
