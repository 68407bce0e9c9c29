package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a real-time event for post-mortem analysis
type TimingEvent struct {
	EventType uint8     // Event type code
	Channel   ChannelID // Channel the event concerns, 0 when not channel-specific
	Tick      uint32    // Tick count at the event (low 32 bits)
	Value1    uint32    // Context-dependent value
	Value2    uint32    // Context-dependent value
}

// Event type codes
const (
	EvtDeadlineMiss   = 1 // tick work exceeded the period (v1=us taken, v2=us period)
	EvtLateConversion = 2 // completion arrived after the next start (v1=outstanding)
	EvtModulation     = 3 // PWM reapplied (v1=period, v2=compare)
	EvtSinkError      = 4 // output sink rejected a sample (v1=sample)
	EvtReadError      = 5 // conversion source failed
)

const (
	TimingRingSize = 32 // Keep last 32 events per ring
)

var (
	// debugPrintln is the global debug print function (set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls synchronous debug output
	debugEnabled bool

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables synchronous debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine.
// Call from main after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			if debugPrintln != nil {
				debugPrintln(msg)
			}
		}
	}()
}

// DebugPrintln writes a debug message using the platform writer.
// Never call from a tick or conversion handler; use DebugAsync there.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message without blocking; drops it when the
// queue is full or async output was never started
func DebugAsync(msg string) {
	if debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// TimingRing is a fixed ring of timing events. Each interrupt context owns
// its own ring, so Record never races with another writer.
type TimingRing struct {
	events [TimingRingSize]TimingEvent
	head   uint8
	total  uint32
}

// Record captures an event, overwriting the oldest one
func (r *TimingRing) Record(eventType uint8, ch ChannelID, tick, value1, value2 uint32) {
	r.events[r.head] = TimingEvent{
		EventType: eventType,
		Channel:   ch,
		Tick:      tick,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (r.head + 1) % TimingRingSize
	r.total++
}

// Total returns the number of events recorded since start
func (r *TimingRing) Total() uint32 {
	return r.total
}

// Events returns the recorded events oldest first
func (r *TimingRing) Events() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := r.events[(r.head+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

// Dump writes the ring through w, oldest first. Call from task context.
func (r *TimingRing) Dump(name string, w DebugWriter) {
	if w == nil {
		return
	}
	w("[TIMING] === " + name + " ===")
	for _, evt := range r.Events() {
		w("[TIMING] " + eventName(evt.EventType) +
			" ch=" + itoa(int(evt.Channel)) +
			" tick=" + utoa(evt.Tick) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[TIMING] === End Dump ===")
}

func eventName(t uint8) string {
	switch t {
	case EvtDeadlineMiss:
		return "DEADLINE_MISS!"
	case EvtLateConversion:
		return "LATE_CONV"
	case EvtModulation:
		return "PWM_APPLY"
	case EvtSinkError:
		return "SINK_ERR"
	case EvtReadError:
		return "READ_ERR"
	}
	return "UNKNOWN"
}
