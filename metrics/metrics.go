// Package metrics counts runtime observations for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/saucer/core"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "saucer"

// Collector is a core.Observer that counts effects, app messages and
// self-messages.
type Collector struct {
	effects      *prometheus.CounterVec
	messages     prometheus.Counter
	selfMessages *prometheus.CounterVec
	sequence     prometheus.Gauge
}

// NewCollector registers the runtime metrics on reg. An empty namespace
// means DefaultNamespace.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)
	return &Collector{
		effects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_total",
			Help:      "Effect requests routed, by plugin.",
		}, []string{"plugin"}),
		messages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "App messages applied by Update.",
		}),
		selfMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_messages_total",
			Help:      "Plugin self-messages applied, by plugin.",
		}, []string{"plugin"}),
		sequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observation_sequence",
			Help:      "Sequence number of the latest observation.",
		}),
	}
}

// Observer returns c as a core.Observer.
func (c *Collector) Observer() core.Observer { return c.Observe }

// Observe counts o.
func (c *Collector) Observe(o core.Observation) {
	switch o.Kind {
	case core.Effect:
		c.effects.WithLabelValues(o.Plugin).Inc()
	case core.Message:
		c.messages.Inc()
	case core.SelfMessage:
		c.selfMessages.WithLabelValues(o.Plugin).Inc()
	}
	c.sequence.Set(float64(o.Seq))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
