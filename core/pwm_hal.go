package core

// PWMDriver is the abstract PWM time-base interface the modulation scheduler
// drives. Platform code handles the actual peripheral.
type PWMDriver interface {
	// ConfigureTimeBase sets counting geometry and period and resets the counter
	ConfigureTimeBase(mode CountMode, period uint32) error

	// SetCompare loads the comparator for one output of the pair.
	// Output B uses the inverted action mapping of A.
	SetCompare(out PWMOutput, value uint32) error

	// SetPhaseShift loads the phase offset in time-base counts
	SetPhaseShift(counts uint32) error
}
