//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so task-context readers see a consistent
// view of state owned by an interrupt handler
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the mask saved by disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
