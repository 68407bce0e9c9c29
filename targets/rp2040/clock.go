//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"

	"wavescope/core"
)

// hardwareTimerHz is the rate of the free-running timer
const hardwareTimerHz = 1000000

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit 1 MHz hardware timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// monotonic is the engine's clock for deadline checks
func monotonic() time.Duration {
	return time.Duration(GetHardwareUptime()) * time.Microsecond
}

// tickTimer stands in for the periodic timer interrupt: the main loop polls
// it and runs the tick handler once per period
type tickTimer struct {
	periodUS uint64
	next     uint64
	skipped  uint32
}

func newTickTimer(tickFrequency uint32) *tickTimer {
	us := uint64(core.TimerReload(hardwareTimerHz, tickFrequency))
	return &tickTimer{periodUS: us, next: GetHardwareUptime() + us}
}

// due reports whether a tick should run now. When the loop fell more than a
// whole period behind, the missed ticks are dropped rather than replayed.
func (t *tickTimer) due() bool {
	now := GetHardwareUptime()
	if now < t.next {
		return false
	}
	t.next += t.periodUS
	if now >= t.next {
		t.skipped++
		t.next = now + t.periodUS
	}
	return true
}
