// Package metrics exposes prometheus collectors for file system activity.
//
// All methods are safe on a nil *Metrics, so that instrumentation is optional.
package metrics

import (
	"errors"
	"time"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	// GB stands for giga bytes (1024 mega bytes)
	GB = units.GiB

	labelPartition = "partition"
)

// Metrics of a file system
type Metrics struct {
	Commits             prometheus.Counter
	CommitsRejected     prometheus.Counter
	Publishes           prometheus.Counter
	Mutations           *prometheus.CounterVec
	WriteSize           *prometheus.HistogramVec
	TransactionDuration prometheus.Histogram
}

// New builds the collectors and registers them if a registerer is configured.
//
// Collectors already registered under the same names are reused.
func New(opts ...Option) (*Metrics, error) {
	s := defaultSettings(opts)

	m := &Metrics{
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "commits_total",
			Help:      "Transactions applied to the file system",
		}),
		CommitsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "commits_rejected_total",
			Help:      "Transactions discarded by the commit verifier",
		}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "publishes_total",
			Help:      "Publish events emitted after the settle time",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "mutations_total",
			Help:      "Primitive mutations, per partition",
		}, []string{labelPartition}),
		WriteSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      "write_size_bytes",
			Help:      "Size of written files, per partition",
			Buckets:   prometheus.ExponentialBuckets(KB, 4, 8),
		}, []string{labelPartition}),
		TransactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Duration of transactions, from handler start to commit",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if s.registerer == nil {
		return m, nil
	}

	var err error
	if m.Commits, err = register(s.registerer, m.Commits); err != nil {
		return nil, err
	}
	if m.CommitsRejected, err = register(s.registerer, m.CommitsRejected); err != nil {
		return nil, err
	}
	if m.Publishes, err = register(s.registerer, m.Publishes); err != nil {
		return nil, err
	}
	if m.Mutations, err = register(s.registerer, m.Mutations); err != nil {
		return nil, err
	}
	if m.WriteSize, err = register(s.registerer, m.WriteSize); err != nil {
		return nil, err
	}
	if m.TransactionDuration, err = register(s.registerer, m.TransactionDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Commit records an applied transaction
func (m *Metrics) Commit(started time.Time) {
	if m == nil {
		return
	}
	m.Commits.Inc()
	m.TransactionDuration.Observe(time.Since(started).Seconds())
}

// Rejected records a discarded transaction
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.CommitsRejected.Inc()
}

// Publish records a publish event
func (m *Metrics) Publish() {
	if m == nil {
		return
	}
	m.Publishes.Inc()
}

// Mutation records a primitive mutation on a partition
func (m *Metrics) Mutation(partition string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(partition).Inc()
}

// Write records the size of a written file
func (m *Metrics) Write(partition string, size int) {
	if m == nil {
		return
	}
	m.WriteSize.WithLabelValues(partition).Observe(float64(size))
}
