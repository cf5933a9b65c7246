// Package metered wraps a hextrie.Persist with Prometheus metrics.
package metered

import (
	"context"
	"errors"

	"github.com/jrhy/hextrie"
	"github.com/prometheus/client_golang/prometheus"
)

// Persist counts the operations going through another Persist.
type Persist struct {
	next hextrie.Persist

	ops   *prometheus.CounterVec
	bytes *prometheus.CounterVec
}

// New wraps next, registering its collectors on reg under the given
// namespace.
func New(next hextrie.Persist, reg prometheus.Registerer, namespace string) (*Persist, error) {
	p := &Persist{
		next: next,
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Help:      "Number of record loads and stores by result",
				Name:      "record_operations_total",
				Namespace: namespace,
			},
			[]string{"op", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Help:      "Bytes of records loaded and stored",
				Name:      "record_bytes_total",
				Namespace: namespace,
			},
			[]string{"op"},
		),
	}
	for _, c := range []prometheus.Collector{p.ops, p.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, hextrie.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Load implements the hextrie.Persist interface.
func (p *Persist) Load(ctx context.Context, name string) ([]byte, error) {
	b, err := p.next.Load(ctx, name)
	p.ops.WithLabelValues("load", result(err)).Inc()
	if err == nil {
		p.bytes.WithLabelValues("load").Add(float64(len(b)))
	}
	return b, err
}

// Store implements the hextrie.Persist interface.
func (p *Persist) Store(ctx context.Context, name string, b []byte) error {
	err := p.next.Store(ctx, name, b)
	p.ops.WithLabelValues("store", result(err)).Inc()
	if err == nil {
		p.bytes.WithLabelValues("store").Add(float64(len(b)))
	}
	return err
}
