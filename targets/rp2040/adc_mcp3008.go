//go:build (rp2040 || rp2350) && mcp3008

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/mcp3008"

	"wavescope/core"
)

// MCP3008 wiring: SPI0 SCK=GPIO2, SDO=GPIO3, SDI=GPIO4, CS=GPIO5
const (
	mcp3008CS   = machine.GPIO5
	mcp3008Baud = 1000000
)

var errADCChannel = errors.New("MCP3008 has channels 0-7")

// MCP3008ADC samples an external 10-bit SPI converter. Results are widened
// to 12 bits so the acquisition rings keep one scale for either source.
type MCP3008ADC struct {
	dev      *mcp3008.Device
	channels []core.ChannelID
	results  [8]uint16
	failed   [8]bool
}

func newConversionSource(channels []core.ChannelID) (conversionSource, error) {
	for _, ch := range channels {
		if ch > 7 {
			return nil, errADCChannel
		}
	}
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: mcp3008Baud,
		SCK:       machine.GPIO2,
		SDO:       machine.GPIO3,
		SDI:       machine.GPIO4,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	dev := mcp3008.New(machine.SPI0, mcp3008CS)
	dev.Configure()
	return &MCP3008ADC{dev: dev, channels: channels}, nil
}

// Sample converts every configured channel. The driver scales its 10-bit
// result to 16 bits.
func (d *MCP3008ADC) Sample() {
	for _, ch := range d.channels {
		v, err := d.dev.Read(int(ch))
		d.failed[ch] = err != nil
		d.results[ch] = v >> 4
	}
}

func (d *MCP3008ADC) ReadResult(ch core.ChannelID) (uint16, error) {
	if ch > 7 {
		return 0, errADCChannel
	}
	if d.failed[ch] {
		return 0, errors.New("mcp3008 read failed")
	}
	return d.results[ch], nil
}
