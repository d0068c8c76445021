package spc

// slidingWindow holds the most recent size samples in a ring buffer.
type slidingWindow struct {
	values []float64
	size   int
	index  int
	count  int
}

func newSlidingWindow(size int) *slidingWindow {
	return &slidingWindow{values: make([]float64, size), size: size}
}

// Add pushes value, evicting the oldest sample once the window is full.
func (sw *slidingWindow) Add(value float64) {
	sw.values[sw.index] = value
	sw.index = (sw.index + 1) % sw.size
	if sw.count < sw.size {
		sw.count++
	}
}

// Full reports whether the window holds size samples.
func (sw *slidingWindow) Full() bool {
	return sw.count == sw.size
}

// Stats returns mean and sample standard deviation of the held samples.
// Two passes over a small buffer avoid the drift of running sums of squares.
func (sw *slidingWindow) Stats() (float64, float64) {
	if sw.count == 0 {
		return 0, 0
	}
	held := sw.values[:sw.count]
	m := mean(held)
	return m, sampleStdDev(held, m)
}
