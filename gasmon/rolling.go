package gasmon

import "golang.org/x/exp/constraints"

// RollingAverage is a fixed capacity sliding window. It is not safe for
// concurrent use; the battery loop owns its instance.
type RollingAverage struct {
	samples []float64
	head    int
	size    int
}

func NewRollingAverage(capacity int) *RollingAverage {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingAverage{samples: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (r *RollingAverage) Push(v float64) {
	if r.size < len(r.samples) {
		r.size++
	}
	r.samples[r.head] = v
	r.head = (r.head + 1) % len(r.samples)
}

// Average returns the mean of the window, or 0 when it is empty.
func (r *RollingAverage) Average() float64 {
	if r.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.samples[(r.head-r.size+i+len(r.samples))%len(r.samples)]
	}
	return sum / float64(r.size)
}

func (r *RollingAverage) Len() int { return r.size }

func (r *RollingAverage) Cap() int { return len(r.samples) }

func (r *RollingAverage) Reset() {
	r.head, r.size = 0, 0
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
