package hosted

import "sync/atomic"

// floatRing is a single-producer single-consumer ring of audio samples. The
// tick goroutine pushes, the audio driver's reader pops.
type floatRing struct {
	buf   []float32
	mask  uint64
	read  atomic.Uint64
	write atomic.Uint64
}

// newFloatRing rounds size up to a power of two
func newFloatRing(size int) *floatRing {
	n := 1
	for n < size {
		n <<= 1
	}
	return &floatRing{buf: make([]float32, n), mask: uint64(n - 1)}
}

// push appends v and reports false when the ring is full
func (r *floatRing) push(v float32) bool {
	w := r.write.Load()
	if w-r.read.Load() >= uint64(len(r.buf)) {
		return false
	}
	r.buf[w&r.mask] = v
	r.write.Store(w + 1)
	return true
}

// pop removes the oldest sample
func (r *floatRing) pop() (float32, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return 0, false
	}
	v := r.buf[rd&r.mask]
	r.read.Store(rd + 1)
	return v, true
}

func (r *floatRing) len() int {
	return int(r.write.Load() - r.read.Load())
}
