package clock

import "time"

// FakeClock is a Clock pinned to an instant tests control. Instants are
// normalized to UTC, matching SystemClock.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward. Not safe for concurrent use; tests own
// the sequencing.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
