package core

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/oneconcern/nest/pkg/dlogger"
	"github.com/oneconcern/nest/pkg/metrics"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// DefaultSettleTime is the quiet period before a publish event
const DefaultSettleTime = 2500 * time.Millisecond

// CommitVerifier approves or rejects the modifications of a transaction
type CommitVerifier func(ctx context.Context, modifications []Modification) (bool, error)

func approveAll(context.Context, []Modification) (bool, error) { return true, nil }

type (
	// Option configures a FileSystem
	Option func(*fsOptions)

	fsOptions struct {
		logger     *zap.Logger
		verifier   CommitVerifier
		settleTime time.Duration
		clock      clock.WithDelayedExecution
		rng        io.Reader
		metrics    *metrics.Metrics
	}
)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *fsOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCommitVerifier sets the hook approving transactions. All transactions
// are approved by default.
func WithCommitVerifier(verifier CommitVerifier) Option {
	return func(o *fsOptions) {
		if verifier != nil {
			o.verifier = verifier
		}
	}
}

// WithSettleTime sets the quiet period after the last commit before a publish
// event is emitted. It defaults to DefaultSettleTime.
func WithSettleTime(d time.Duration) Option {
	return func(o *fsOptions) {
		if d > 0 {
			o.settleTime = d
		}
	}
}

// WithClock sets the clock used for timestamps and publish timers
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *fsOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRandom sets the source of private key material. It defaults to crypto/rand.
func WithRandom(rng io.Reader) Option {
	return func(o *fsOptions) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// WithMetrics enables prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *fsOptions) {
		o.metrics = m
	}
}

func defaultOptions(opts []Option) fsOptions {
	o := fsOptions{
		logger:     dlogger.MustGetLogger(dlogger.LogLevelInfo),
		verifier:   approveAll,
		settleTime: DefaultSettleTime,
		clock:      clock.RealClock{},
		rng:        rand.Reader,
	}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

type (
	// MutationOption modifies a single mutation or transaction
	MutationOption func(*mutationOptions)

	mutationOptions struct {
		skipPublish bool
	}
)

// SkipPublish bypasses the publish event for this mutation
func SkipPublish(enabled bool) MutationOption {
	return func(o *mutationOptions) {
		o.skipPublish = enabled
	}
}

func defaultMutationOptions(opts []MutationOption) mutationOptions {
	var o mutationOptions
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

type (
	// ReadOption selects a byte range to read
	ReadOption func(*readOptions)

	readOptions struct {
		offset int64
		length int64
	}
)

// WithOffset starts reading at some byte offset
func WithOffset(offset int64) ReadOption {
	return func(o *readOptions) {
		o.offset = offset
	}
}

// WithLength reads at most length bytes
func WithLength(length int64) ReadOption {
	return func(o *readOptions) {
		o.length = length
	}
}

func defaultReadOptions(opts []ReadOption) readOptions {
	o := readOptions{length: -1}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
