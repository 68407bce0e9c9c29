package config

// Config is the complete static configuration of one engine instance
type Config struct {
	TickPeriodUS    uint32              `json:"tick_period_us"`   // tick period in microseconds
	ClockBase       uint32              `json:"clock_base"`       // PWM time-base clock in Hz
	ResolutionBits  uint8               `json:"resolution_bits"`  // converter resolution
	LivenessDivider uint32              `json:"liveness_divider"` // ticks per status toggle, 0 disables
	Channels        []ChannelConfig     `json:"channels"`         // synthesis channels
	Modulation      *ModulationConfig   `json:"modulation"`       // nil disables PWM modulation
	Acquisition     []AcquisitionConfig `json:"acquisition"`      // acquisition rings
	Hosted          HostedConfig        `json:"hosted"`           // simulator and runtime options
	Serial          SerialConfig        `json:"serial"`           // inspection link
}

// ChannelConfig describes one synthesis channel
type ChannelConfig struct {
	ID        uint8        `json:"id"`
	Method    string       `json:"method"`    // "direct", "timebase" or "table"
	Frequency float64      `json:"frequency"` // Hz
	Amplitude float64      `json:"amplitude"` // output swing in codes
	Offset    float64      `json:"offset"`    // DC bias in codes
	OutMax    uint16       `json:"out_max"`   // upper output bound
	Increment float64      `json:"increment"` // direct only; overrides frequency
	Table     *TableConfig `json:"table"`     // table only
}

// TableConfig describes a lookup table and its output transform
type TableConfig struct {
	Size  int     `json:"size"`
	Gain  float64 `json:"gain"`
	Width uint8   `json:"width"` // signed domain bits
	Shift uint8   `json:"shift"` // right shift after the sign flip
}

// ModulationConfig describes the PWM reconfiguration
type ModulationConfig struct {
	Frequency     uint32  `json:"frequency"`   // Hz
	Duty          float64 `json:"duty"`        // 0..1
	PhaseShift    float64 `json:"phase_shift"` // 0..1 of a period
	Mode          string  `json:"mode"`        // "symmetric" or "asymmetric"
	Refresh       float64 `json:"refresh_seconds"`
	Epsilon       float64 `json:"epsilon_seconds"`
	OncePerWindow bool    `json:"once_per_window"`
}

// AcquisitionConfig describes one acquisition ring. Capacity wins over
// SignalFrequency; otherwise the ring spans one period of the signal.
type AcquisitionConfig struct {
	ID              uint8   `json:"id"`
	Capacity        int     `json:"capacity"`
	SignalFrequency float64 `json:"signal_frequency"`

	// Source names the synthesis channel a hosted loopback feeds back into
	// this ring. Nil reads the channel with the same ID.
	Source *uint8 `json:"source"`
}

// HostedConfig holds options for the hosted runtimes
type HostedConfig struct {
	ConversionLatencyUS uint32 `json:"conversion_latency_us"` // trigger to completion
	DurationMS          uint32 `json:"duration_ms"`           // default run length
	AudioChannel        uint8  `json:"audio_channel"`         // synthesis channel played by -audio
}

// SerialConfig describes the serial link to a device
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}
