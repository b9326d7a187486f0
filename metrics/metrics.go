// Package metrics counts account lifecycle activity with Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/goliatone/go-accounts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActivityCounter is an accounts.ActivitySink incrementing
// accounts_activity_total{event} for every recorded event.
type ActivityCounter struct {
	events   *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

var _ accounts.ActivitySink = (*ActivityCounter)(nil)

// NewActivityCounter registers the counter with reg. Registering twice with
// the same registry reuses the existing collector. A nil reg uses the
// default registry.
func NewActivityCounter(reg prometheus.Registerer) (*ActivityCounter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "activity_total",
		Help:      "Count of account lifecycle events by type",
	}, []string{"event"})

	if err := reg.Register(events); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		events = existing
	}

	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	return &ActivityCounter{events: events, gatherer: gatherer}, nil
}

func (c *ActivityCounter) Record(_ context.Context, event accounts.ActivityEvent) error {
	c.events.With(prometheus.Labels{"event": string(event.EventType)}).Inc()
	return nil
}

// Handler exposes the registry the counter was registered with.
func (c *ActivityCounter) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
