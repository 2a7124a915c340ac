package identity

import (
	"sync"
	"time"
)

// Throttle counts failed sign-ins per email. Once limit failures happen within
// window further attempts are refused until the oldest failure ages out.
type Throttle struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	failures map[string][]time.Time
	now      func() time.Time
}

func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allowed reports whether another attempt may be made for email
func (t *Throttle) Allowed(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recentLocked(email)) < t.limit
}

// Fail records a failed attempt
func (t *Throttle) Fail(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[email] = append(t.recentLocked(email), t.now())
}

// Reset forgets failures after a successful sign-in
func (t *Throttle) Reset(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, email)
}

func (t *Throttle) recentLocked(email string) []time.Time {
	cutoff := t.now().Add(-t.window)
	recent := t.failures[email][:0]
	for _, at := range t.failures[email] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) == 0 {
		delete(t.failures, email)
		return nil
	}
	t.failures[email] = recent
	return recent
}
