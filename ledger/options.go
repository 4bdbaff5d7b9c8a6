package ledger

import (
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/router"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/session"
)

type config struct {
	names         directory.Names
	bufferOpts    []hotbuf.Option
	schedulerOpts []scheduler.Option
	routerOpts    []router.Option
	sessionOpts   []session.Option
}

// Option is an option for the ledger.
type Option func(*config)

// WithBufferOpts passes the supplied options to the hot buffer constructor.
func WithBufferOpts(opts ...hotbuf.Option) Option {
	return func(c *config) {
		c.bufferOpts = append(c.bufferOpts, opts...)
	}
}

// WithSchedulerOpts passes the supplied options to the archival scheduler.
func WithSchedulerOpts(opts ...scheduler.Option) Option {
	return func(c *config) {
		c.schedulerOpts = append(c.schedulerOpts, opts...)
	}
}

// WithRouterOpts passes the supplied options to the query router.
func WithRouterOpts(opts ...router.Option) Option {
	return func(c *config) {
		c.routerOpts = append(c.routerOpts, opts...)
	}
}

// WithSessionOpts passes the supplied options to the session registry.
func WithSessionOpts(opts ...session.Option) Option {
	return func(c *config) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithNames sets the durable category and tag name set. The default is an
// in-memory set, which only survives a restart through the snapshot.
func WithNames(names directory.Names) Option {
	return func(c *config) {
		c.names = names
	}
}
