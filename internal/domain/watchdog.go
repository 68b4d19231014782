package domain

import "time"

// RestartTracker throttles how often the supervisor may launch the server
// process. Every launch attempt is recorded; attempts older than the window
// are discarded; once max attempts remain on record the tracker reports
// throttling until enough of them age out.
//
// The tracker is not safe for concurrent use; the supervisor serializes
// access to it.
type RestartTracker struct {
	max      int
	window   time.Duration
	attempts []time.Time
}

// NewRestartTracker creates a tracker allowing at most max launch attempts
// per rolling window.
func NewRestartTracker(max int, window time.Duration) *RestartTracker {
	return &RestartTracker{max: max, window: window}
}

// Record notes a launch attempt at now, whether or not it succeeded.
func (r *RestartTracker) Record(now time.Time) {
	r.prune(now)
	r.attempts = append(r.attempts, now)
}

// Throttled reports whether max or more attempts happened within the window
// ending at now.
func (r *RestartTracker) Throttled(now time.Time) bool {
	r.prune(now)
	return len(r.attempts) >= r.max
}

// Attempts returns the number of launch attempts still on record at now.
func (r *RestartTracker) Attempts(now time.Time) int {
	r.prune(now)
	return len(r.attempts)
}

// SetPolicy replaces the limits while keeping the recorded attempts. Called
// when the configuration is reloaded.
func (r *RestartTracker) SetPolicy(max int, window time.Duration) {
	r.max = max
	r.window = window
}

func (r *RestartTracker) prune(now time.Time) {
	kept := r.attempts[:0]
	for _, at := range r.attempts {
		if now.Sub(at) <= r.window {
			kept = append(kept, at)
		}
	}
	r.attempts = kept
}
