package core

// Liveness toggles a status pin every Divider ticks to show the tick handler
// is running. It carries no data.
type Liveness struct {
	divider uint32
	count   uint32
	level   bool
	toggles uint32
	pin     StatusPin
}

// NewLiveness creates an indicator. A zero divider or nil pin disables it.
func NewLiveness(divider uint32, pin StatusPin) *Liveness {
	return &Liveness{divider: divider, pin: pin}
}

// Tick counts one tick and toggles the pin on every divider-th call
func (l *Liveness) Tick() {
	if l.divider == 0 || l.pin == nil {
		return
	}
	l.count++
	if l.count < l.divider {
		return
	}
	l.count = 0
	l.level = !l.level
	l.toggles++
	l.pin.Toggle()
}

// Level returns the current indicator level
func (l *Liveness) Level() bool {
	return l.level
}

// Toggles returns how many times the pin was toggled
func (l *Liveness) Toggles() uint32 {
	return l.toggles
}
