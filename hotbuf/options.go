package hotbuf

import "time"

type config struct {
	ceiling  int
	clock    func() time.Time
	lowest   uint64
	lastTime uint64
}

// Option configures a Buffer.
type Option func(*config)

// WithCeiling sets the hard limit on resident records. Appends beyond it fail
// with ErrCapacityExceeded. Zero means unbounded.
func WithCeiling(n int) Option {
	return func(c *config) {
		c.ceiling = n
	}
}

// WithClock overrides the clock used to stamp records. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithStart positions an empty buffer so that its first append receives index
// lowest, with creation times no earlier than lastTime. A ledger resuming over
// existing archives without a snapshot starts at the archives' end.
func WithStart(lowest, lastTime uint64) Option {
	return func(c *config) {
		c.lowest = lowest
		c.lastTime = lastTime
	}
}
