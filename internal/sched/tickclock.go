// internal/sched/tickclock.go

package sched

// TickClock counts simulated ticks. Only the engine advances it, so a run
// never depends on wall-clock time.
type TickClock struct {
	count int
}

// NewTickClock creates a clock positioned at tick 0.
func NewTickClock() *TickClock {
	return &TickClock{}
}

// Count returns the current tick.
func (c *TickClock) Count() int {
	return c.count
}

// Advance moves the clock one tick forward and returns the new tick.
func (c *TickClock) Advance() int {
	c.count++
	return c.count
}

// Done reports whether the clock has reached horizon.
func (c *TickClock) Done(horizon int) bool {
	return c.count >= horizon
}

// Reset rewinds the clock to tick 0.
func (c *TickClock) Reset() {
	c.count = 0
}
