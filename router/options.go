package router

type config struct {
	concurrency int
	attempts    int
}

// Option is an option for the query router.
type Option func(*config)

// WithConcurrency bounds the number of shards read in parallel by a single
// query. The default is 8.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithAttempts sets how many times a query retries when an archival run
// changes the tier boundary while the query is being planned. The default
// is 16.
func WithAttempts(n int) Option {
	return func(c *config) {
		c.attempts = n
	}
}
