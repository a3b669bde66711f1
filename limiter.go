package gitpress

import (
	"sync"
	"time"

	"github.com/eringen/gitpress/clock"
)

// Limiter is a sliding-window counter keyed by IP address or login.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	clock    clock.Clock
	stop     chan struct{}
	once     sync.Once
}

// NewLimiter creates a Limiter that allows max hits per window. A nil clk
// uses the wall clock.
func NewLimiter(max int, window time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.Real()
	}
	l := &Limiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		clock:    clk,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.stop:
			return
		case <-l.clock.After(l.window):
		}
		l.mu.Lock()
		for key := range l.attempts {
			l.prune(key)
		}
		l.mu.Unlock()
	}
}

// prune drops hits outside the window. Callers hold mu.
func (l *Limiter) prune(key string) []time.Time {
	cutoff := l.clock.Now().Add(-l.window)
	hits := l.attempts[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return nil
	}
	l.attempts[key] = kept
	return kept
}

// Allow checks the limit and records a hit in one step.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prune(key)) >= l.max {
		return false
	}
	l.attempts[key] = append(l.attempts[key], l.clock.Now())
	return true
}

// Check reports whether key is under the limit without recording a hit.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key)) < l.max
}

// Record registers a hit for key, such as a failed login.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], l.clock.Now())
	l.mu.Unlock()
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
