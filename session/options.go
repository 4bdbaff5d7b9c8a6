package session

import "time"

type config struct {
	queueBound  int
	backlog     int
	idleTimeout time.Duration
	clock       func() time.Time
}

// Option is an option for the session registry.
type Option func(*config)

// WithQueueBound sets the maximum number of undelivered messages held per
// session. When exceeded the oldest are dropped. The default is 256.
func WithQueueBound(n int) Option {
	return func(c *config) {
		c.queueBound = n
	}
}

// WithBacklog sets the capacity of the channel between writers and the
// dispatcher. Notifications arriving while it is full are dropped. The
// default is 1024.
func WithBacklog(n int) Option {
	return func(c *config) {
		c.backlog = n
	}
}

// WithIdleTimeout sets how long a session may go without polling before it
// is reaped. Zero disables reaping. The default is ten minutes.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) {
		c.idleTimeout = d
	}
}

// WithClock overrides the registry's time source.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}
