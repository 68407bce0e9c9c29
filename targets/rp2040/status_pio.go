//go:build rp2040 || rp2350

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// buildStatusProgram pulls one word per toggle and drives its low bit onto
// the status pin:
//
//	pull block
//	out pins, 1
func buildStatusProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Encode(),
	}
}

// PIOStatusPin is the liveness output. Toggle only pushes a word into the
// state machine FIFO, so the tick never waits on the pin.
type PIOStatusPin struct {
	sm    rp2pio.StateMachine
	level bool
}

// NewPIOStatusPin loads the status program on PIO0 state machine smNum
func NewPIOStatusPin(pin machine.Pin, smNum uint8) (*PIOStatusPin, error) {
	pio := rp2pio.PIO0
	sm := pio.StateMachine(smNum)
	sm.TryClaim()

	program := buildStatusProgram()
	offset, err := pio.AddProgram(program, -1)
	if err != nil {
		return nil, err
	}

	pin.Configure(machine.PinConfig{Mode: pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	sm.Init(offset, cfg)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetPinsConsecutive(pin, 1, false)
	sm.SetEnabled(true)

	return &PIOStatusPin{sm: sm}, nil
}

func (p *PIOStatusPin) Toggle() {
	p.level = !p.level
	if p.sm.IsTxFIFOFull() {
		return
	}
	if p.level {
		p.sm.TxPut(1)
	} else {
		p.sm.TxPut(0)
	}
}
