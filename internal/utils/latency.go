package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent duration samples in a ring and
// computes percentiles over them.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	next    int
	full    bool
	total   int
}

// NewLatencyTracker creates a tracker holding up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, maxSize)}
}

// Observe records a new duration, overwriting the oldest once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Percentile returns the nearest-rank percentile (0-100) of the held samples,
// or zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	held := append([]time.Duration(nil), l.held()...)
	l.mu.RUnlock()

	if len(held) == 0 {
		return 0
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })

	switch {
	case p <= 0:
		return held[0]
	case p >= 100:
		return held[len(held)-1]
	}
	index := int((p / 100.0) * float64(len(held)-1))
	return held[index]
}

// Count returns the number of samples currently held.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.held())
}

// Total returns the number of samples ever observed.
func (l *LatencyTracker) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *LatencyTracker) held() []time.Duration {
	if l.full {
		return l.samples
	}
	return l.samples[:l.next]
}
