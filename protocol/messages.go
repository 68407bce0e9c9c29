package protocol

import "fmt"

// ChunkValues is the most samples a single buffer_chunk frame carries. With
// 12-bit samples every value fits two VLQ bytes.
const ChunkValues = 20

// Info answers get_info
type Info struct {
	Version      uint32
	TickPeriodUS uint32
	ClockBase    uint32
	SynthCount   uint32
	Acquisition  []ChannelInfo
}

// ChannelInfo describes one acquisition ring
type ChannelInfo struct {
	ID       uint8
	Capacity uint32
}

// Encode writes the info response arguments
func (m *Info) Encode(output OutputBuffer) {
	EncodeVLQUint(output, m.Version)
	EncodeVLQUint(output, m.TickPeriodUS)
	EncodeVLQUint(output, m.ClockBase)
	EncodeVLQUint(output, m.SynthCount)
	EncodeVLQUint(output, uint32(len(m.Acquisition)))
	for _, c := range m.Acquisition {
		EncodeVLQUint(output, uint32(c.ID))
		EncodeVLQUint(output, c.Capacity)
	}
}

// DecodeInfo reads info response arguments
func DecodeInfo(data *[]byte) (Info, error) {
	var m Info
	var err error
	fields := []*uint32{&m.Version, &m.TickPeriodUS, &m.ClockBase, &m.SynthCount}
	for _, f := range fields {
		if *f, err = DecodeVLQUint(data); err != nil {
			return Info{}, fmt.Errorf("info: %w", err)
		}
	}
	n, err := DecodeVLQUint(data)
	if err != nil {
		return Info{}, fmt.Errorf("info: %w", err)
	}
	if int(n) > len(*data) {
		return Info{}, fmt.Errorf("info: %w", ErrBufferTooSmall)
	}
	m.Acquisition = make([]ChannelInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := DecodeVLQUint(data)
		if err != nil {
			return Info{}, fmt.Errorf("info channel %d: %w", i, err)
		}
		capacity, err := DecodeVLQUint(data)
		if err != nil {
			return Info{}, fmt.Errorf("info channel %d: %w", i, err)
		}
		m.Acquisition = append(m.Acquisition, ChannelInfo{ID: uint8(id), Capacity: capacity})
	}
	return m, nil
}

// StatsReport answers get_stats
type StatsReport struct {
	Ticks              uint64
	DeadlineMisses     uint32
	ModulationApplied  uint32
	ConversionsStart   uint32
	Conversions        uint32
	LateConversions    uint32
	ReadErrors         uint32
	SinkErrors         uint32
	PWMErrors          uint32
	DroppedConversions uint32
}

// Encode writes the stats response arguments. Ticks is sent as two 32-bit
// halves.
func (m *StatsReport) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(m.Ticks>>32))
	EncodeVLQUint(output, uint32(m.Ticks))
	for _, v := range m.counters() {
		EncodeVLQUint(output, *v)
	}
}

func (m *StatsReport) counters() []*uint32 {
	return []*uint32{
		&m.DeadlineMisses, &m.ModulationApplied, &m.ConversionsStart,
		&m.Conversions, &m.LateConversions, &m.ReadErrors,
		&m.SinkErrors, &m.PWMErrors, &m.DroppedConversions,
	}
}

// DecodeStats reads stats response arguments
func DecodeStats(data *[]byte) (StatsReport, error) {
	var m StatsReport
	hi, err := DecodeVLQUint(data)
	if err != nil {
		return StatsReport{}, fmt.Errorf("stats: %w", err)
	}
	lo, err := DecodeVLQUint(data)
	if err != nil {
		return StatsReport{}, fmt.Errorf("stats: %w", err)
	}
	m.Ticks = uint64(hi)<<32 | uint64(lo)
	for _, v := range m.counters() {
		if *v, err = DecodeVLQUint(data); err != nil {
			return StatsReport{}, fmt.Errorf("stats: %w", err)
		}
	}
	return m, nil
}

// DumpRequest asks for up to Count values of channel Channel's frozen
// snapshot starting at Offset. Offset 0 refreezes the snapshot.
type DumpRequest struct {
	Channel uint8
	Offset  uint32
	Count   uint32
}

func (m *DumpRequest) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(m.Channel))
	EncodeVLQUint(output, m.Offset)
	EncodeVLQUint(output, m.Count)
}

func DecodeDumpRequest(data *[]byte) (DumpRequest, error) {
	ch, err := DecodeVLQUint(data)
	if err != nil {
		return DumpRequest{}, fmt.Errorf("dump_buffer: %w", err)
	}
	offset, err := DecodeVLQUint(data)
	if err != nil {
		return DumpRequest{}, fmt.Errorf("dump_buffer: %w", err)
	}
	count, err := DecodeVLQUint(data)
	if err != nil {
		return DumpRequest{}, fmt.Errorf("dump_buffer: %w", err)
	}
	return DumpRequest{Channel: uint8(ch), Offset: offset, Count: count}, nil
}

// BufferChunk carries part of a chronological buffer snapshot. Total is the
// number of valid samples in the snapshot and Index the ring's write index
// when it was frozen.
type BufferChunk struct {
	Channel uint8
	Offset  uint32
	Total   uint32
	Index   uint32
	Values  []uint16
}

func (m *BufferChunk) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(m.Channel))
	EncodeVLQUint(output, m.Offset)
	EncodeVLQUint(output, m.Total)
	EncodeVLQUint(output, m.Index)
	EncodeVLQUint(output, uint32(len(m.Values)))
	for _, v := range m.Values {
		EncodeVLQUint(output, uint32(v))
	}
}

func DecodeBufferChunk(data *[]byte) (BufferChunk, error) {
	var m BufferChunk
	var hdr [5]uint32
	for i := range hdr {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return BufferChunk{}, fmt.Errorf("buffer_chunk: %w", err)
		}
		hdr[i] = v
	}
	m.Channel = uint8(hdr[0])
	m.Offset, m.Total, m.Index = hdr[1], hdr[2], hdr[3]
	count := hdr[4]
	if count > ChunkValues {
		return BufferChunk{}, fmt.Errorf("buffer_chunk: %d values: %w", count, ErrInvalidVLQ)
	}
	m.Values = make([]uint16, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return BufferChunk{}, fmt.Errorf("buffer_chunk value %d: %w", i, err)
		}
		m.Values = append(m.Values, uint16(v))
	}
	return m, nil
}

// ErrorReport carries a device-side command failure
type ErrorReport struct {
	Command uint16
	Message string
}

func (m *ErrorReport) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(m.Command))
	msg := m.Message
	if len(msg) > 40 {
		msg = msg[:40]
	}
	EncodeVLQBytes(output, []byte(msg))
}

func DecodeErrorReport(data *[]byte) (ErrorReport, error) {
	cmd, err := DecodeVLQUint(data)
	if err != nil {
		return ErrorReport{}, fmt.Errorf("error: %w", err)
	}
	msg, err := DecodeVLQBytes(data)
	if err != nil {
		return ErrorReport{}, fmt.Errorf("error: %w", err)
	}
	return ErrorReport{Command: uint16(cmd), Message: string(msg)}, nil
}

func (m ErrorReport) Error() string {
	return fmt.Sprintf("device rejected command %d: %s", m.Command, m.Message)
}
