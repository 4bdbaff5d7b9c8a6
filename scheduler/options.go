package scheduler

import "time"

type config struct {
	threshold int
	batchSize int
	retention int
	interval  time.Duration
}

// Option is an option for the archival scheduler.
type Option func(*config)

// WithThreshold sets the hot buffer size above which a run transfers records.
// The default is 10000.
func WithThreshold(n int) Option {
	return func(c *config) {
		c.threshold = n
	}
}

// WithBatchSize caps the number of records moved by a single run. Zero means
// every record outside the retention window.
func WithBatchSize(n int) Option {
	return func(c *config) {
		c.batchSize = n
	}
}

// WithRetention sets the number of most recent records that are never moved,
// regardless of batch size.
func WithRetention(n int) Option {
	return func(c *config) {
		c.retention = n
	}
}

// WithInterval sets the period between scheduled runs. The default is 30
// seconds.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}
