//go:build !tinygo

package core

// State stands in for the saved interrupt mask on hosted builds
type State uintptr

// disableInterrupts is a no-op on hosted builds: each piece of engine state has
// one owning goroutine, so there is nothing to mask
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on hosted builds
func restoreInterrupts(State) {}
