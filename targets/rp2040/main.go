//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"wavescope/core"
	"wavescope/protocol"
)

// Bench wiring: two PWM-DAC outputs looped back into ADC0/ADC1, the
// complementary modulation pair on slice 1 and the liveness LED
const (
	dacPin0   = machine.GPIO16
	dacPin1   = machine.GPIO17
	pairPinA  = machine.GPIO18
	pairPinB  = machine.GPIO19
	statusPin = machine.LED

	dacCarrierHz = 30000
)

// conversionSource is a converter polled from the main loop
type conversionSource interface {
	core.ConversionSource
	Sample()
}

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// set by the tick, cleared when the main loop has sampled
	conversionPending bool

	usbErrors uint32
)

// engineConfig is the bench demo: a 60 Hz phase channel and a table channel
// sampled at 10 kHz into one-period rings, with a 1 kHz 80% complementary
// PWM refreshed every 3 s
func engineConfig() core.EngineConfig {
	period := core.TickPeriodFromFrequency(core.DefaultTickFrequency)
	capacity := core.CapacityFor(core.DefaultTickFrequency, 60)
	return core.EngineConfig{
		TickPeriod: period,
		Synthesis: []core.SynthesisConfig{
			{ID: 0, Method: core.MethodDirect, Frequency: 60, Amplitude: 4095, OutMax: 4095},
			{ID: 1, Method: core.MethodTable, Amplitude: 4095, OutMax: 4095,
				TableSize: 100, TableGain: 8, Transform: core.DemoTransform},
		},
		Modulation: &core.ModulationConfig{
			Frequency: 1000,
			Duty:      0.8,
			Mode:      core.CountSymmetric,
			ClockBase: core.DefaultClockBase,
			Refresh:   3,
			Epsilon:   0.05,
		},
		Acquisition: []core.AcquisitionConfig{
			{ID: 0, Capacity: capacity},
			{ID: 1, Capacity: capacity},
		},
		ResolutionBits:  core.DefaultResolutionBits,
		LivenessDivider: core.DefaultTickFrequency,
	}
}

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	cfg := engineConfig()
	engine, source, err := newBenchEngine(cfg)
	if err != nil {
		fail()
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	registry := core.NewCommandRegistry()
	transport = protocol.NewTransport(outputBuffer, registry.Dispatch)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	transport.SetFlushCallback(writeUSB)
	core.RegisterScopeCommands(registry, engine, transport.Send)

	if err := engine.Start(); err != nil {
		fail()
	}
	ticks := newTickTimer(core.DefaultTickFrequency)

	for {
		// the tick has priority over everything else in the loop
		if ticks.due() {
			engine.Tick()
		}

		if conversionPending {
			conversionPending = false
			source.Sample()
			engine.ConversionComplete()
			continue
		}

		readUSB()
		if inputBuffer.Available() > 0 {
			transport.Receive(inputBuffer)
		}
		if len(outputBuffer.Result()) > 0 {
			writeUSB()
		}
	}
}

func newBenchEngine(cfg core.EngineConfig) (*core.Engine, conversionSource, error) {
	bounds := make(map[core.ChannelID]core.Sample)
	for _, s := range cfg.Synthesis {
		bounds[s.ID] = s.OutMax
	}
	dac, err := NewPWMDAC(dacCarrierHz, map[core.ChannelID]machine.Pin{0: dacPin0, 1: dacPin1}, bounds)
	if err != nil {
		return nil, nil, err
	}

	pair, err := NewComplementaryPWM(pairPinA, pairPinB, cfg.Modulation.ClockBase)
	if err != nil {
		return nil, nil, err
	}

	channels := make([]core.ChannelID, 0, len(cfg.Acquisition))
	for _, a := range cfg.Acquisition {
		channels = append(channels, a.ID)
	}
	source, err := newConversionSource(channels)
	if err != nil {
		return nil, nil, err
	}

	status, err := NewPIOStatusPin(statusPin, 0)
	if err != nil {
		return nil, nil, err
	}

	engine, err := core.NewEngine(cfg, core.Platform{
		Sink:    dac,
		PWM:     pair,
		Source:  source,
		Trigger: core.TriggerFunc(func() { conversionPending = true }),
		Status:  status,
		Now:     monotonic,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, source, nil
}

// fail blinks the LED forever; a bad bench configuration cannot recover
func fail() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

// readUSB moves pending USB bytes into the input FIFO
func readUSB() {
	for USBAvailable() > 0 && inputBuffer.Free() > 0 {
		b, err := USBRead()
		if err != nil {
			usbErrors++
			return
		}
		inputBuffer.Write([]byte{b})
	}
}

// writeUSB writes the output buffer to USB. On a failed write the pending
// bytes are dropped: the host retransmits on timeout.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			usbErrors++
			break
		}
		written += n
	}
	outputBuffer.Reset()
}
