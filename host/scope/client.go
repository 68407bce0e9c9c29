// Package scope is the host side of the inspection link: it connects to a
// device, reads its info and counters and pulls acquisition snapshots.
package scope

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"wavescope/host/serial"
	"wavescope/protocol"
)

// DefaultTimeout bounds one command exchange
const DefaultTimeout = time.Second

var (
	ErrNotConnected       = errors.New("not connected to device")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Client talks to one device
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration
	info      *protocol.Info
}

// Dump is one chronological acquisition snapshot
type Dump struct {
	Channel uint8
	// Index is the ring's write index when the snapshot was frozen
	Index  uint32
	Values []uint16
}

// Connect opens device with the default serial configuration
func Connect(device string) (*Client, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port and starts a client on it
func ConnectWithConfig(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Device, err)
	}
	return NewClient(port, DefaultTimeout), nil
}

// NewClient starts a client on an already open link
func NewClient(port io.ReadWriteCloser, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   timeout,
	}
}

// Close closes the link
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	return err
}

// call runs one exchange and returns the arguments of the single expected
// response. A device error report is returned as a protocol.ErrorReport.
func (c *Client) call(cmdID, want uint16, args func(protocol.OutputBuffer)) ([]byte, error) {
	if c.transport == nil {
		return nil, ErrNotConnected
	}
	responses, err := c.transport.Exchange(cmdID, args, c.timeout)
	if err != nil {
		return nil, err
	}
	for _, r := range responses {
		switch r.ID {
		case want:
			return r.Args, nil
		case protocol.RespError:
			data := r.Args
			report, err := protocol.DecodeErrorReport(&data)
			if err != nil {
				return nil, err
			}
			return nil, report
		}
	}
	return nil, fmt.Errorf("command %d: %w (%d frames)", cmdID, ErrUnexpectedResponse, len(responses))
}

// Info asks the device to describe itself and caches the answer
func (c *Client) Info() (protocol.Info, error) {
	data, err := c.call(protocol.CmdGetInfo, protocol.RespInfo, nil)
	if err != nil {
		return protocol.Info{}, err
	}
	info, err := protocol.DecodeInfo(&data)
	if err != nil {
		return protocol.Info{}, err
	}
	c.info = &info
	return info, nil
}

// CachedInfo returns the last Info result, if any
func (c *Client) CachedInfo() (protocol.Info, bool) {
	if c.info == nil {
		return protocol.Info{}, false
	}
	return *c.info, true
}

// Stats reads the device counters
func (c *Client) Stats() (protocol.StatsReport, error) {
	data, err := c.call(protocol.CmdGetStats, protocol.RespStats, nil)
	if err != nil {
		return protocol.StatsReport{}, err
	}
	return protocol.DecodeStats(&data)
}

// DumpBuffer pulls a whole acquisition ring, oldest sample first. The first
// request freezes the device-side snapshot, so the chunks are consistent
// with each other even while acquisition keeps running.
func (c *Client) DumpBuffer(channel uint8) (Dump, error) {
	dump := Dump{Channel: channel}
	offset := uint32(0)
	for {
		req := protocol.DumpRequest{Channel: channel, Offset: offset, Count: protocol.ChunkValues}
		data, err := c.call(protocol.CmdDumpBuffer, protocol.RespBufferData, req.Encode)
		if err != nil {
			return Dump{}, fmt.Errorf("dump channel %d at %d: %w", channel, offset, err)
		}
		chunk, err := protocol.DecodeBufferChunk(&data)
		if err != nil {
			return Dump{}, err
		}
		if chunk.Channel != channel || chunk.Offset != offset {
			return Dump{}, fmt.Errorf("dump channel %d: chunk for channel %d at %d, want %d: %w",
				channel, chunk.Channel, chunk.Offset, offset, ErrUnexpectedResponse)
		}
		if offset == 0 {
			dump.Index = chunk.Index
			dump.Values = make([]uint16, 0, chunk.Total)
		}

		dump.Values = append(dump.Values, chunk.Values...)
		offset += uint32(len(chunk.Values))
		if offset >= chunk.Total || len(chunk.Values) == 0 {
			return dump, nil
		}
	}
}

// WriteCSV writes a dump as "sample,value" rows. A non-zero tick period adds
// a time column in seconds.
func WriteCSV(w io.Writer, dump Dump, tickPeriod time.Duration) error {
	cw := csv.NewWriter(w)
	header := []string{"sample", "value"}
	if tickPeriod > 0 {
		header = append(header, "time_s")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, v := range dump.Values {
		row := []string{strconv.Itoa(i), strconv.Itoa(int(v))}
		if tickPeriod > 0 {
			row = append(row, strconv.FormatFloat(float64(i)*tickPeriod.Seconds(), 'f', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PrintInfo writes a readable summary of info
func PrintInfo(w io.Writer, info protocol.Info) {
	fmt.Fprintf(w, "protocol version: %d\n", info.Version)
	fmt.Fprintf(w, "tick period:      %d us\n", info.TickPeriodUS)
	fmt.Fprintf(w, "clock base:       %d Hz\n", info.ClockBase)
	fmt.Fprintf(w, "synth channels:   %d\n", info.SynthCount)
	for _, ch := range info.Acquisition {
		fmt.Fprintf(w, "acquisition %d:    %d samples\n", ch.ID, ch.Capacity)
	}
}

// PrintStats writes the device counters
func PrintStats(w io.Writer, s protocol.StatsReport) {
	fmt.Fprintf(w, "ticks:              %d\n", s.Ticks)
	fmt.Fprintf(w, "deadline misses:    %d\n", s.DeadlineMisses)
	fmt.Fprintf(w, "modulation applied: %d\n", s.ModulationApplied)
	fmt.Fprintf(w, "conversions:        %d/%d started\n", s.Conversions, s.ConversionsStart)
	fmt.Fprintf(w, "late conversions:   %d\n", s.LateConversions)
	fmt.Fprintf(w, "dropped:            %d\n", s.DroppedConversions)
	fmt.Fprintf(w, "read errors:        %d\n", s.ReadErrors)
	fmt.Fprintf(w, "sink errors:        %d\n", s.SinkErrors)
	fmt.Fprintf(w, "pwm errors:         %d\n", s.PWMErrors)
}
