package core

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// Options configures a driver instance.
type Options struct {
	// Debug emits every statement to Logger before it is executed.
	Debug bool
	// Pool allows the driver to open more than one connection.
	Pool bool
	// Logger receives debug statements and swallowed ping failures.
	Logger logrus.FieldLogger
	// Metrics receives statement counters and timers.
	Metrics tally.Scope
	// Middlewares are appended after the debug and metrics middlewares.
	Middlewares []Middleware
}

// WithDefaults returns a copy of o with a logger and a metrics scope set.
// The default logger is a fresh, silent logrus instance unless Debug is set.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		logger := logrus.New()
		if !o.Debug {
			logger.SetOutput(io.Discard)
		}
		o.Logger = logger
	}
	if o.Metrics == nil {
		o.Metrics = tally.NoopScope
	}
	return o
}

// Chain returns the middlewares every statement goes through.
func (o Options) Chain() []Middleware {
	o = o.WithDefaults()
	var list []Middleware
	if o.Debug {
		list = append(list, DebugMiddleware(o.Logger))
	}
	list = append(list, MetricsMiddleware(o.Metrics))
	return append(list, o.Middlewares...)
}
