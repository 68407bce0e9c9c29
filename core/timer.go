package core

import "time"

// Clock rates used by the bench setup
const (
	DefaultTickFrequency = 10000     // 10 kHz tick, P = 100us
	DefaultClockBase     = 100000000 // PWM time-base clock (half of the 200 MHz SYSCLK)
)

// TickPeriodFromFrequency converts a tick rate in Hz to a tick period
func TickPeriodFromFrequency(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// TimerReload returns the reload count a hardware timer clocked at clockBase
// needs to fire at tickFrequency
func TimerReload(clockBase, tickFrequency uint32) uint32 {
	if tickFrequency == 0 {
		return 0
	}
	return clockBase / tickFrequency
}

// ElapsedClock is the elapsed-time accumulator advanced once per tick.
// It is owned by the tick dispatcher.
type ElapsedClock struct {
	period  float64 // seconds per tick
	elapsed float64 // seconds since start
	ticks   uint64
}

// NewElapsedClock creates an accumulator for the given tick period
func NewElapsedClock(period time.Duration) *ElapsedClock {
	return &ElapsedClock{period: period.Seconds()}
}

// Advance adds exactly one tick period. The accumulator never wraps.
func (c *ElapsedClock) Advance() {
	c.elapsed += c.period
	c.ticks++
}

// Elapsed returns the accumulated time in seconds
func (c *ElapsedClock) Elapsed() float64 {
	return c.elapsed
}

// Ticks returns the number of Advance calls
func (c *ElapsedClock) Ticks() uint64 {
	return c.ticks
}

// Period returns the tick period in seconds
func (c *ElapsedClock) Period() float64 {
	return c.period
}
