package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavescope/protocol"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewCommandRegistry()
	called := 0
	reg.Register(42, "ping", func(*[]byte) error {
		called++
		return nil
	})

	assert.Equal(t, 1, reg.Count())
	cmd, ok := reg.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "ping", cmd.Name)

	require.NoError(t, reg.Dispatch(42, nil))
	assert.Equal(t, 1, called)
	assert.ErrorIs(t, reg.Dispatch(7, nil), ErrUnknownCommand)
}

// scopeDevice is an engine served over the device-side transport
type scopeDevice struct {
	engine    *Engine
	out       *protocol.ScratchOutput
	transport *protocol.Transport
	seq       uint8
}

func newScopeDevice(t *testing.T) *scopeDevice {
	t.Helper()
	e, err := NewEngine(benchEngineConfig(), Platform{})
	require.NoError(t, err)
	require.NoError(t, e.Start())

	d := &scopeDevice{engine: e, out: protocol.NewScratchOutput(), seq: protocol.MessageDest}
	reg := NewCommandRegistry()
	d.transport = protocol.NewTransport(d.out, reg.Dispatch)
	RegisterScopeCommands(reg, e, d.transport.Send)
	return d
}

// call sends one command and returns the response frames before the ack
func (d *scopeDevice) call(t *testing.T, id uint16, args func(protocol.OutputBuffer)) []protocol.Response {
	t.Helper()
	req := protocol.NewScratchOutput()
	require.NoError(t, protocol.EncodeFrame(req, d.seq, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(id))
		if args != nil {
			args(o)
		}
	}))
	d.seq = protocol.NextSequence(d.seq)

	d.out.Reset()
	d.transport.Receive(protocol.NewSliceInputBuffer(req.Result()))

	var responses []protocol.Response
	acked := false
	protocol.ParseStream(d.out.Result(), func(m protocol.Message) {
		if len(m.Payload) == 0 {
			acked = true
			assert.Equal(t, d.seq, m.Sequence)
			return
		}
		data := m.Payload
		rid, err := protocol.DecodeVLQUint(&data)
		require.NoError(t, err)
		responses = append(responses, protocol.Response{Sequence: m.Sequence, ID: uint16(rid), Args: data})
	})
	require.True(t, acked, "every command is acked")
	return responses
}

func TestScopeGetInfo(t *testing.T) {
	d := newScopeDevice(t)
	resp := d.call(t, protocol.CmdGetInfo, nil)
	require.Len(t, resp, 1)
	require.Equal(t, protocol.RespInfo, resp[0].ID)

	info, err := protocol.DecodeInfo(&resp[0].Args)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), info.TickPeriodUS)
	assert.Equal(t, uint32(DefaultClockBase), info.ClockBase)
	assert.Equal(t, uint32(2), info.SynthCount)
	assert.Equal(t, []protocol.ChannelInfo{{ID: 0, Capacity: 167}, {ID: 1, Capacity: 167}}, info.Acquisition)
}

func TestScopeGetStats(t *testing.T) {
	d := newScopeDevice(t)
	for i := 0; i < 25; i++ {
		d.engine.Tick()
	}

	resp := d.call(t, protocol.CmdGetStats, nil)
	require.Len(t, resp, 1)
	stats, err := protocol.DecodeStats(&resp[0].Args)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), stats.Ticks)
	assert.Equal(t, uint32(25), stats.ConversionsStart)
	assert.Equal(t, uint32(25), stats.ModulationApplied)
}

func TestScopeDumpBufferIsFrozenAcrossChunks(t *testing.T) {
	d := newScopeDevice(t)
	buf, ok := d.engine.Buffer(0)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		buf.Write(Sample(i + 1))
	}

	var got []uint16
	offset := uint32(0)
	for {
		req := protocol.DumpRequest{Channel: 0, Offset: offset, Count: protocol.ChunkValues}
		resp := d.call(t, protocol.CmdDumpBuffer, req.Encode)
		require.Len(t, resp, 1)
		chunk, err := protocol.DecodeBufferChunk(&resp[0].Args)
		require.NoError(t, err)
		assert.Equal(t, uint32(167), chunk.Total)
		assert.Equal(t, uint32(10), chunk.Index)

		got = append(got, chunk.Values...)
		offset += uint32(len(chunk.Values))
		if offset >= chunk.Total {
			break
		}
		// writes between chunks do not leak into the frozen snapshot
		buf.Write(4000)
	}

	require.Len(t, got, 167)
	assert.Equal(t, uint16(10), got[166], "newest sample last")
	assert.Equal(t, uint16(1), got[157])
	assert.Zero(t, got[0])
}

func TestScopeDumpUnknownChannel(t *testing.T) {
	d := newScopeDevice(t)
	req := protocol.DumpRequest{Channel: 9}
	resp := d.call(t, protocol.CmdDumpBuffer, req.Encode)

	require.Len(t, resp, 1)
	require.Equal(t, protocol.RespError, resp[0].ID)
	report, err := protocol.DecodeErrorReport(&resp[0].Args)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdDumpBuffer, report.Command)
	assert.Contains(t, report.Message, "unknown acquisition channel")
	assert.ErrorIs(t, d.transport.LastError(), ErrUnknownChannel)
}
