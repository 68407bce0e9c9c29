package core

// StatusPin is the binary diagnostic output toggled by the liveness indicator
type StatusPin interface {
	Toggle()
}
