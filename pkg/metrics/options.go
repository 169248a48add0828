package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines some options to the metrics initialization
type Option func(*settings)

type settings struct {
	namespace  string
	registerer prometheus.Registerer
}

func defaultSettings(opts []Option) settings {
	s := settings{namespace: "nest"}
	for _, apply := range opts {
		apply(&s)
	}
	return s
}

// WithNamespace defines the prefix of all metric names. The default is "nest".
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithRegisterer registers the collectors. Without a registerer, collectors
// are created but not exported.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = registerer
	}
}
