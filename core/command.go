package core

import (
	"errors"
	"fmt"
	"sync"

	"wavescope/protocol"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownChannel = errors.New("unknown acquisition channel")
)

// CommandHandler handles one command, decoding its own arguments from data
type CommandHandler func(data *[]byte) error

// ResponseSender writes one framed response
type ResponseSender func(id uint16, args func(output protocol.OutputBuffer)) error

// Command is a registered command
type Command struct {
	ID      uint16
	Name    string
	Handler CommandHandler
}

// CommandRegistry maps fixed command IDs to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[uint16]*Command)}
}

// Register adds or replaces the handler for id
func (r *CommandRegistry) Register(id uint16, name string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[id] = &Command{ID: id, Name: name, Handler: handler}
}

// Lookup returns the command registered for id
func (r *CommandRegistry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for cmdID. Its signature matches
// protocol.CommandHandler so a registry can back a Transport directly.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.Lookup(cmdID)
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownCommand, cmdID)
	}
	return cmd.Handler(data)
}

// ScopeTarget is what the inspection commands read. *Engine reads directly;
// hosted runtimes route snapshots through the goroutine that owns the
// buffers.
type ScopeTarget interface {
	Stats() Stats
	Config() EngineConfig
	Snapshot(id ChannelID, dst []Sample) ([]Sample, int, error)
}

// scopeCommands keeps the snapshots frozen by dump requests at offset 0, so
// a multi-chunk dump stays consistent while acquisition keeps writing
type scopeCommands struct {
	target ScopeTarget
	send   ResponseSender
	frozen map[ChannelID]frozenSnapshot
}

type frozenSnapshot struct {
	values []Sample
	index  int
}

// RegisterScopeCommands wires get_info, get_stats and dump_buffer to target.
// Handlers run from the task context that services the transport.
func RegisterScopeCommands(reg *CommandRegistry, target ScopeTarget, send ResponseSender) {
	s := &scopeCommands{
		target: target,
		send:   send,
		frozen: make(map[ChannelID]frozenSnapshot),
	}
	reg.Register(protocol.CmdGetInfo, "get_info", s.getInfo)
	reg.Register(protocol.CmdGetStats, "get_stats", s.getStats)
	reg.Register(protocol.CmdDumpBuffer, "dump_buffer", s.dumpBuffer)
}

func (s *scopeCommands) getInfo(data *[]byte) error {
	cfg := s.target.Config()
	info := protocol.Info{
		Version:      protocol.Version,
		TickPeriodUS: uint32(cfg.TickPeriod.Microseconds()),
		ClockBase:    DefaultClockBase,
		SynthCount:   uint32(len(cfg.Synthesis)),
	}
	if cfg.Modulation != nil {
		info.ClockBase = cfg.Modulation.ClockBase
	}
	for _, a := range cfg.Acquisition {
		info.Acquisition = append(info.Acquisition, protocol.ChannelInfo{
			ID:       uint8(a.ID),
			Capacity: uint32(a.Capacity),
		})
	}
	return s.send(protocol.RespInfo, info.Encode)
}

func (s *scopeCommands) getStats(data *[]byte) error {
	st := s.target.Stats()
	report := protocol.StatsReport{
		Ticks:              st.Ticks,
		DeadlineMisses:     st.DeadlineMisses,
		ModulationApplied:  st.ModulationApplied,
		ConversionsStart:   st.ConversionsStart,
		Conversions:        st.Conversions,
		LateConversions:    st.LateConversions,
		ReadErrors:         st.ReadErrors,
		SinkErrors:         st.SinkErrors,
		PWMErrors:          st.PWMErrors,
		DroppedConversions: st.DroppedConversions,
	}
	return s.send(protocol.RespStats, report.Encode)
}

func (s *scopeCommands) dumpBuffer(data *[]byte) error {
	req, err := protocol.DecodeDumpRequest(data)
	if err != nil {
		return err
	}
	ch := ChannelID(req.Channel)

	snap, ok := s.frozen[ch]
	if req.Offset == 0 || !ok {
		values, index, err := s.target.Snapshot(ch, snap.values)
		if err != nil {
			return s.reportError(protocol.CmdDumpBuffer, err)
		}
		snap = frozenSnapshot{values: values, index: index}
		s.frozen[ch] = snap
	}

	count := req.Count
	if count == 0 || count > protocol.ChunkValues {
		count = protocol.ChunkValues
	}
	total := uint32(len(snap.values))
	start := req.Offset
	if start > total {
		start = total
	}
	end := start + count
	if end > total {
		end = total
	}

	chunk := protocol.BufferChunk{
		Channel: req.Channel,
		Offset:  start,
		Total:   total,
		Index:   uint32(snap.index),
		Values:  make([]uint16, 0, end-start),
	}
	for _, v := range snap.values[start:end] {
		chunk.Values = append(chunk.Values, uint16(v))
	}
	return s.send(protocol.RespBufferData, chunk.Encode)
}

func (s *scopeCommands) reportError(cmd uint16, err error) error {
	report := protocol.ErrorReport{Command: cmd, Message: err.Error()}
	if sendErr := s.send(protocol.RespError, report.Encode); sendErr != nil {
		return sendErr
	}
	return err
}
