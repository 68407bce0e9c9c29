//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	"wavescope/core"
)

// sysClockHz is the PWM input clock
const sysClockHz = 125000000

// PWM slice register block: CSR, DIV, CTR, CC, TOP per slice
const (
	pwmBase       = 0x40050000
	pwmSliceSize  = 0x14
	pwmCSROffset  = 0x00
	pwmDIVOffset  = 0x04
	pwmCSREnable  = 1 << 0
	pwmCSRPhCorr  = 1 << 1
	pwmDIVFracMax = 16
)

var errNoSlice = errors.New("pin has no PWM slice")

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	SetTop(top uint32)
	Set(channel uint8, value uint32)
	SetInverting(channel uint8, inverting bool)
	SetCounter(ctr uint32)
}

// getPWMPeripheral returns the PWM slice a pin belongs to: GPIO N maps to
// slice (N>>1)&7, channel A for even pins and B for odd
func getPWMPeripheral(pin machine.Pin) (pwmPeripheral, uint8) {
	slice := uint8((uint32(pin) >> 1) & 0x7)
	switch slice {
	case 0:
		return machine.PWM0, slice
	case 1:
		return machine.PWM1, slice
	case 2:
		return machine.PWM2, slice
	case 3:
		return machine.PWM3, slice
	case 4:
		return machine.PWM4, slice
	case 5:
		return machine.PWM5, slice
	case 6:
		return machine.PWM6, slice
	default:
		return machine.PWM7, slice
	}
}

func sliceRegister(slice uint8, offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + uintptr(slice)*pwmSliceSize + offset))
}

// PWMDAC is the output sink: each synthesis channel drives one PWM pin whose
// duty is the sample code over the channel bound, smoothed by an external
// RC filter
type PWMDAC struct {
	pins map[core.ChannelID]dacPin
}

type dacPin struct {
	pwm     pwmPeripheral
	channel uint8
	outMax  uint32
}

// NewPWMDAC configures one pin per synthesis channel with a carrier of
// carrierHz
func NewPWMDAC(carrierHz uint32, pins map[core.ChannelID]machine.Pin, bounds map[core.ChannelID]core.Sample) (*PWMDAC, error) {
	d := &PWMDAC{pins: make(map[core.ChannelID]dacPin)}
	for id, pin := range pins {
		pwm, _ := getPWMPeripheral(pin)
		if err := pwm.Configure(machine.PWMConfig{Period: 1e9 / uint64(carrierHz)}); err != nil {
			return nil, err
		}
		ch, err := pwm.Channel(pin)
		if err != nil {
			return nil, errNoSlice
		}
		d.pins[id] = dacPin{pwm: pwm, channel: ch, outMax: uint32(bounds[id])}
	}
	return d, nil
}

func (d *PWMDAC) WriteSample(ch core.ChannelID, v core.Sample) error {
	p, ok := d.pins[ch]
	if !ok || p.outMax == 0 {
		return nil
	}
	p.pwm.Set(p.channel, uint32(v)*p.pwm.Top()/p.outMax)
	return nil
}

// ComplementaryPWM drives a slice's A and B outputs as a complementary pair
// for the modulation scheduler. Output A is high while the counter is above
// the compare value and B is its complement.
type ComplementaryPWM struct {
	pwm   pwmPeripheral
	slice uint8
	chA   uint8
	chB   uint8
}

// NewComplementaryPWM claims the slice behind pinA; pinB must be its odd
// neighbour. The slice divider is set so the counter runs at clockBase.
func NewComplementaryPWM(pinA, pinB machine.Pin, clockBase uint32) (*ComplementaryPWM, error) {
	pwm, slice := getPWMPeripheral(pinA)
	if err := pwm.Configure(machine.PWMConfig{}); err != nil {
		return nil, err
	}
	chA, err := pwm.Channel(pinA)
	if err != nil {
		return nil, errNoSlice
	}
	chB, err := pwm.Channel(pinB)
	if err != nil {
		return nil, errNoSlice
	}

	// 8.4 fixed-point divider
	div := uint32(uint64(sysClockHz) * pwmDIVFracMax / uint64(clockBase))
	sliceRegister(slice, pwmDIVOffset).Set(div)

	// A is active above compare: inverted output with compare+1
	pwm.SetInverting(chA, true)
	pwm.SetInverting(chB, false)
	return &ComplementaryPWM{pwm: pwm, slice: slice, chA: chA, chB: chB}, nil
}

func (p *ComplementaryPWM) ConfigureTimeBase(mode core.CountMode, period uint32) error {
	csr := sliceRegister(p.slice, pwmCSROffset)
	if mode == core.CountSymmetric {
		csr.SetBits(pwmCSRPhCorr)
	} else {
		csr.ClearBits(pwmCSRPhCorr)
	}
	p.pwm.SetTop(period)
	p.pwm.SetCounter(0)
	csr.SetBits(pwmCSREnable)
	return nil
}

func (p *ComplementaryPWM) SetCompare(out core.PWMOutput, value uint32) error {
	if out == core.PWMOutputA {
		p.pwm.Set(p.chA, value+1)
	} else {
		p.pwm.Set(p.chB, value+1)
	}
	return nil
}

func (p *ComplementaryPWM) SetPhaseShift(counts uint32) error {
	p.pwm.SetCounter(counts)
	return nil
}
