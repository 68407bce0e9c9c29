//go:build (rp2040 || rp2350) && !mcp3008

package main

import (
	"errors"
	"machine"

	"wavescope/core"
)

var errADCChannel = errors.New("unsupported ADC channel")

// OnChipADC samples the RP2040's ADC inputs. The converter is polled, so a
// started conversion is sampled from the main loop and latched for the
// acquisition handler.
type OnChipADC struct {
	inputs  map[core.ChannelID]*machine.ADC
	results map[core.ChannelID]uint16
}

// newConversionSource maps acquisition channels 0..3 onto ADC0..ADC3
func newConversionSource(channels []core.ChannelID) (conversionSource, error) {
	machine.InitADC()
	d := &OnChipADC{
		inputs:  make(map[core.ChannelID]*machine.ADC),
		results: make(map[core.ChannelID]uint16),
	}
	for _, ch := range channels {
		var adc machine.ADC
		switch ch {
		case 0:
			adc = machine.ADC{Pin: machine.ADC0}
		case 1:
			adc = machine.ADC{Pin: machine.ADC1}
		case 2:
			adc = machine.ADC{Pin: machine.ADC2}
		case 3:
			adc = machine.ADC{Pin: machine.ADC3}
		default:
			return nil, errADCChannel
		}
		if err := adc.Configure(machine.ADCConfig{}); err != nil {
			return nil, err
		}
		d.inputs[ch] = &adc
	}
	return d, nil
}

// Sample converts every input. machine.ADC.Get scales to 16 bits.
func (d *OnChipADC) Sample() {
	for ch, adc := range d.inputs {
		d.results[ch] = adc.Get() >> 4
	}
}

func (d *OnChipADC) ReadResult(ch core.ChannelID) (uint16, error) {
	v, ok := d.results[ch]
	if !ok {
		return 0, errADCChannel
	}
	return v, nil
}
