// Package alert detects fill levels crossing the alert threshold and notifies
// every registered user when they do.
package alert

// DefaultThreshold is the fill percentage at which users are alerted.
const DefaultThreshold = 90

// Tracker remembers the last fill level seen per device. It is not safe for
// concurrent use; the bridge session owns one.
type Tracker struct {
	threshold int
	last      map[string]int
}

// NewTracker creates a tracker for the given threshold.
func NewTracker(threshold int) *Tracker {
	return &Tracker{
		threshold: threshold,
		last:      map[string]int{},
	}
}

// Threshold returns the alert threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Observe records level for deviceID and reports whether it crossed the
// threshold upwards. A device seen for the first time starts at 0.
func (t *Tracker) Observe(deviceID string, level int) bool {
	previous := t.last[deviceID]
	t.last[deviceID] = level
	return level >= t.threshold && previous < t.threshold
}

// Last returns the last level recorded for deviceID.
func (t *Tracker) Last(deviceID string) (int, bool) {
	level, ok := t.last[deviceID]
	return level, ok
}
