package roottree

import (
	"crypto/rand"
	"io"

	"github.com/oneconcern/nest/pkg/dlogger"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Option configures a root tree
type Option func(*options)

type options struct {
	logger *zap.Logger
	clock  clock.PassiveClock
	rng    io.Reader
}

// WithLogger sets the logger reporting missing links
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the source of timestamps for new directories
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRandom sets the source of key material for new private forests
func WithRandom(rng io.Reader) Option {
	return func(o *options) {
		if rng != nil {
			o.rng = rng
		}
	}
}

func defaultOptions(opts []Option) options {
	o := options{
		logger: dlogger.MustGetLogger(dlogger.LogLevelInfo),
		clock:  clock.RealClock{},
		rng:    rand.Reader,
	}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
