package protocol

import (
	"errors"
	"testing"
)

func TestInfoRoundTrip(t *testing.T) {
	want := Info{
		Version:      Version,
		TickPeriodUS: 100,
		ClockBase:    100000000,
		SynthCount:   2,
		Acquisition:  []ChannelInfo{{ID: 0, Capacity: 167}, {ID: 1, Capacity: 83}},
	}
	out := NewScratchOutput()
	want.Encode(out)

	data := out.Result()
	got, err := DecodeInfo(&data)
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if got.ClockBase != want.ClockBase || got.TickPeriodUS != 100 || len(got.Acquisition) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Acquisition[1] != (ChannelInfo{ID: 1, Capacity: 83}) {
		t.Errorf("channel 1 = %+v", got.Acquisition[1])
	}
}

func TestStatsTicksAbove32Bits(t *testing.T) {
	want := StatsReport{Ticks: 1<<32 + 5, DeadlineMisses: 3, LateConversions: 1, PWMErrors: 9, DroppedConversions: 2}
	out := NewScratchOutput()
	want.Encode(out)

	data := out.Result()
	got, err := DecodeStats(&data)
	if err != nil {
		t.Fatalf("DecodeStats: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestBufferChunkFitsOneFrame(t *testing.T) {
	chunk := BufferChunk{Channel: 1, Offset: 160, Total: 167, Index: 42}
	for i := 0; i < ChunkValues; i++ {
		chunk.Values = append(chunk.Values, 4095)
	}

	out := NewScratchOutput()
	err := EncodeFrame(out, MessageDest, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(RespBufferData))
		chunk.Encode(o)
	})
	if err != nil {
		t.Fatalf("full chunk does not fit a frame: %v", err)
	}

	msg, _, err := ParseFrame(out.Result())
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	data := msg.Payload
	if id, _ := DecodeVLQUint(&data); uint16(id) != RespBufferData {
		t.Fatalf("response id %d", id)
	}
	got, err := DecodeBufferChunk(&data)
	if err != nil {
		t.Fatalf("DecodeBufferChunk: %v", err)
	}
	if got.Offset != 160 || got.Total != 167 || got.Index != 42 || len(got.Values) != ChunkValues {
		t.Errorf("got %+v", got)
	}
}

func TestBufferChunkRejectsOversize(t *testing.T) {
	out := NewScratchOutput()
	for _, v := range []uint32{0, 0, 0, 0, ChunkValues + 1} {
		EncodeVLQUint(out, v)
	}
	data := out.Result()
	if _, err := DecodeBufferChunk(&data); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("expected ErrInvalidVLQ, got %v", err)
	}
}

func TestDumpRequestRoundTrip(t *testing.T) {
	want := DumpRequest{Channel: 2, Offset: 40, Count: ChunkValues}
	out := NewScratchOutput()
	want.Encode(out)

	data := out.Result()
	got, err := DecodeDumpRequest(&data)
	if err != nil || got != want {
		t.Errorf("got %+v err %v", got, err)
	}
}

func TestErrorReportTruncates(t *testing.T) {
	long := ErrorReport{Command: CmdDumpBuffer, Message: "unknown acquisition channel with a rather long description"}
	out := NewScratchOutput()
	long.Encode(out)

	data := out.Result()
	got, err := DecodeErrorReport(&data)
	if err != nil {
		t.Fatalf("DecodeErrorReport: %v", err)
	}
	if got.Command != CmdDumpBuffer || len(got.Message) != 40 {
		t.Errorf("got %+v", got)
	}
}
