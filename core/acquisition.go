// Acquisition handling
// Runs on every conversion-complete event and fills the per-channel rings
package core

import "sync/atomic"

// Acquisition handler states
const (
	AcqStateIdle  = 0
	AcqStateArmed = 1
)

// DefaultResolutionBits is the converter resolution of the bench ADC
const DefaultResolutionBits = 12

// AcquisitionChannel pairs a converter channel with the ring it fills
type AcquisitionChannel struct {
	ID     ChannelID
	Buffer *SampleBuffer
}

// AcquisitionHandler is the conversion-complete handler. It is the only
// writer of its channels' buffers.
type AcquisitionHandler struct {
	source   ConversionSource
	channels []*AcquisitionChannel
	mask     uint16
	state    atomic.Uint32

	// started is written only from the tick context (MarkStarted),
	// completed only from this handler
	started   atomic.Uint32
	completed atomic.Uint32
	dropped   atomic.Uint32

	late       atomic.Uint32
	readErrors atomic.Uint32

	timing TimingRing
}

// NewAcquisitionHandler creates an idle handler for the given channels
func NewAcquisitionHandler(source ConversionSource, resolutionBits uint8, channels ...*AcquisitionChannel) *AcquisitionHandler {
	if resolutionBits == 0 || resolutionBits > 16 {
		resolutionBits = DefaultResolutionBits
	}
	return &AcquisitionHandler{
		source:   source,
		channels: channels,
		mask:     uint16(uint32(1)<<resolutionBits - 1),
	}
}

// Arm enables the handler; completions before Arm are ignored
func (h *AcquisitionHandler) Arm() {
	h.state.Store(AcqStateArmed)
}

// Armed reports whether the handler accepts completions
func (h *AcquisitionHandler) Armed() bool {
	return h.state.Load() == AcqStateArmed
}

// MarkStarted records that a conversion was started. Called from the tick
// context alongside the platform trigger.
func (h *AcquisitionHandler) MarkStarted() {
	h.started.Add(1)
}

// MarkDropped records that a started conversion will never complete, so
// later completions are not counted late on its account
func (h *AcquisitionHandler) MarkDropped() {
	h.dropped.Add(1)
}

// OnConversionComplete reads each channel's result and writes it into that
// channel's ring. A completion that finds another conversion already
// started behind it is counted as late.
func (h *AcquisitionHandler) OnConversionComplete() {
	if h.state.Load() != AcqStateArmed {
		return
	}
	done := h.completed.Add(1)
	if outstanding := int32(h.started.Load() - h.dropped.Load() - done); outstanding > 0 {
		h.late.Add(1)
		h.timing.Record(EvtLateConversion, 0, done, uint32(outstanding), 0)
	}

	for _, ch := range h.channels {
		raw, err := h.source.ReadResult(ch.ID)
		if err != nil {
			h.readErrors.Add(1)
			h.timing.Record(EvtReadError, ch.ID, done, 0, 0)
			continue
		}
		ch.Buffer.Write(Sample(raw & h.mask))
	}
}

// Channels returns the configured acquisition channels
func (h *AcquisitionHandler) Channels() []*AcquisitionChannel {
	return h.channels
}

// Completed returns the number of handled completions
func (h *AcquisitionHandler) Completed() uint32 {
	return h.completed.Load()
}

// Started returns the number of conversions marked as started
func (h *AcquisitionHandler) Started() uint32 {
	return h.started.Load()
}

// Dropped returns the number of conversions marked as dropped
func (h *AcquisitionHandler) Dropped() uint32 {
	return h.dropped.Load()
}

// LateConversions returns how many completions arrived after a newer start
func (h *AcquisitionHandler) LateConversions() uint32 {
	return h.late.Load()
}

// ReadErrors returns how many channel reads failed
func (h *AcquisitionHandler) ReadErrors() uint32 {
	return h.readErrors.Load()
}

// Timing returns the handler's event ring
func (h *AcquisitionHandler) Timing() *TimingRing {
	return &h.timing
}
