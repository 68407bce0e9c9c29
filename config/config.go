// Package config loads engine configurations from JSON or Lua and converts
// them into core.EngineConfig.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wavescope/core"
)

var (
	ErrInvalid         = errors.New("invalid configuration")
	ErrUnknownFormat   = errors.New("unknown configuration format")
	ErrUnknownMethod   = errors.New("unknown synthesis method")
	ErrUnknownCounting = errors.New("unknown counting mode")
)

// Method names accepted in ChannelConfig.Method
const (
	MethodDirect   = "direct"
	MethodTimeBase = "timebase"
	MethodTable    = "table"
)

// DefaultBaud is the serial rate used when none is configured
const DefaultBaud = 250000

// LoadConfig parses a JSON configuration and applies defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a .json or .lua configuration file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadConfig(data)
	case ".lua":
		return LoadLua(string(data))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// applyDefaults fills in missing values with the bench setup
func applyDefaults(cfg *Config) {
	if cfg.TickPeriodUS == 0 {
		cfg.TickPeriodUS = 100 // 10 kHz
	}
	if cfg.ClockBase == 0 {
		cfg.ClockBase = core.DefaultClockBase
	}
	if cfg.ResolutionBits == 0 {
		cfg.ResolutionBits = core.DefaultResolutionBits
	}

	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Method == "" {
			ch.Method = MethodDirect
		}
		if ch.OutMax == 0 {
			ch.OutMax = 4095
		}
		if ch.Method == MethodTable {
			if ch.Table == nil {
				ch.Table = &TableConfig{}
			}
			if ch.Table.Size == 0 {
				ch.Table.Size = 100
			}
			if ch.Table.Gain == 0 {
				ch.Table.Gain = 8
			}
			if ch.Table.Width == 0 {
				ch.Table.Width = core.DemoTransform.Width
				if ch.Table.Shift == 0 {
					ch.Table.Shift = core.DemoTransform.Shift
				}
			}
		}
	}

	if m := cfg.Modulation; m != nil {
		if m.Mode == "" {
			m.Mode = core.CountSymmetric.String()
		}
		if m.Frequency == 0 {
			m.Frequency = 1000
		}
	}

	tickHz := 1e6 / float64(cfg.TickPeriodUS)
	for i := range cfg.Acquisition {
		a := &cfg.Acquisition[i]
		if a.Capacity == 0 && a.SignalFrequency > 0 {
			a.Capacity = core.CapacityFor(tickHz, a.SignalFrequency)
		}
	}

	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = DefaultBaud
	}
}

// Validate checks the configuration by building the engine configuration
// from it
func (c *Config) Validate() error {
	_, err := c.EngineConfig()
	return err
}

// EngineConfig converts the file form into core.EngineConfig
func (c *Config) EngineConfig() (core.EngineConfig, error) {
	ec := core.EngineConfig{
		TickPeriod:      time.Duration(c.TickPeriodUS) * time.Microsecond,
		ResolutionBits:  c.ResolutionBits,
		LivenessDivider: c.LivenessDivider,
	}

	for _, ch := range c.Channels {
		s := core.SynthesisConfig{
			ID:        core.ChannelID(ch.ID),
			Frequency: ch.Frequency,
			Amplitude: ch.Amplitude,
			Offset:    ch.Offset,
			OutMax:    core.Sample(ch.OutMax),
			Increment: ch.Increment,
		}
		switch ch.Method {
		case MethodDirect:
			s.Method = core.MethodDirect
		case MethodTimeBase:
			s.Method = core.MethodTimeBase
		case MethodTable:
			s.Method = core.MethodTable
			if ch.Table == nil {
				return core.EngineConfig{}, fmt.Errorf("%w: channel %d: table method without table", ErrInvalid, ch.ID)
			}
			s.TableSize = ch.Table.Size
			s.TableGain = ch.Table.Gain
			s.Transform = core.SampleTransform{Width: ch.Table.Width, Shift: ch.Table.Shift}
		default:
			return core.EngineConfig{}, fmt.Errorf("%w: channel %d: %w %q", ErrInvalid, ch.ID, ErrUnknownMethod, ch.Method)
		}
		ec.Synthesis = append(ec.Synthesis, s)
	}

	if m := c.Modulation; m != nil {
		mode, err := parseMode(m.Mode)
		if err != nil {
			return core.EngineConfig{}, fmt.Errorf("%w: modulation: %w", ErrInvalid, err)
		}
		ec.Modulation = &core.ModulationConfig{
			Frequency:     m.Frequency,
			Duty:          m.Duty,
			PhaseShift:    m.PhaseShift,
			Mode:          mode,
			ClockBase:     c.ClockBase,
			Refresh:       m.Refresh,
			Epsilon:       m.Epsilon,
			OncePerWindow: m.OncePerWindow,
		}
	}

	for _, a := range c.Acquisition {
		ec.Acquisition = append(ec.Acquisition, core.AcquisitionConfig{
			ID:       core.ChannelID(a.ID),
			Capacity: a.Capacity,
		})
	}

	if err := ec.Validate(); err != nil {
		return core.EngineConfig{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return ec, nil
}

// SourceFor returns the synthesis channel that loops back into acquisition
// channel id
func (c *Config) SourceFor(id uint8) uint8 {
	for _, a := range c.Acquisition {
		if a.ID == id && a.Source != nil {
			return *a.Source
		}
	}
	return id
}

// ConversionLatency returns the hosted trigger-to-completion delay
func (c *Config) ConversionLatency() time.Duration {
	return time.Duration(c.Hosted.ConversionLatencyUS) * time.Microsecond
}

// Duration returns the default hosted run length
func (c *Config) Duration() time.Duration {
	return time.Duration(c.Hosted.DurationMS) * time.Millisecond
}

func parseMode(s string) (core.CountMode, error) {
	switch strings.ToLower(s) {
	case "symmetric", "up-down", "updown":
		return core.CountSymmetric, nil
	case "asymmetric", "up":
		return core.CountAsymmetric, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCounting, s)
}

// DefaultConfig returns the bench demo: a 60 Hz direct sine and a 100-point
// table channel at a 10 kHz tick, both looped back into 167-sample rings,
// with the 1 kHz complementary PWM reapplied every 3 s
func DefaultConfig() *Config {
	table := uint8(1)
	cfg := &Config{
		TickPeriodUS:    100,
		ClockBase:       core.DefaultClockBase,
		ResolutionBits:  core.DefaultResolutionBits,
		LivenessDivider: core.DefaultTickFrequency,
		Channels: []ChannelConfig{
			{ID: 0, Method: MethodDirect, Frequency: 60, Amplitude: 4095, OutMax: 4095},
			{ID: 1, Method: MethodTable, Amplitude: 4095, OutMax: 4095,
				Table: &TableConfig{Size: 100, Gain: 8, Width: 16, Shift: 5}},
		},
		Modulation: &ModulationConfig{
			Frequency: 1000,
			Duty:      0.8,
			Mode:      core.CountSymmetric.String(),
			Refresh:   3.0,
			Epsilon:   0.05,
		},
		Acquisition: []AcquisitionConfig{
			{ID: 0, SignalFrequency: 60},
			{ID: 1, SignalFrequency: 60, Source: &table},
		},
		Hosted: HostedConfig{
			ConversionLatencyUS: 20,
			DurationMS:          1000,
		},
		Serial: SerialConfig{Device: "/dev/ttyACM0"},
	}
	applyDefaults(cfg)
	return cfg
}
