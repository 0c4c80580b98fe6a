// Package metrics exposes endpoint lifecycle and traffic counters through
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/mirage/pkg/mirage"
)

// Collector is a mirage.EventHandler backed by a private Prometheus
// registry. Register it with mirage.WithEventHandler and serve Handler()
// on an HTTP mux.
type Collector struct {
	registry *prometheus.Registry

	messagesSent     prometheus.Counter
	bytesSent        prometheus.Counter
	messagesReceived prometheus.Counter
	bytesReceived    prometheus.Counter
	messagesDropped  prometheus.Counter
	transportFaults  prometheus.Counter
	stateTransitions *prometheus.CounterVec
	running          prometheus.Gauge
}

var _ mirage.EventHandler = (*Collector)(nil)

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "messages_sent_total",
			Help:      "Async messages accepted by the transport.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "bytes_sent_total",
			Help:      "Async payload bytes accepted by the transport.",
		}),
		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "messages_received_total",
			Help:      "Async messages dispatched to the handler.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "bytes_received_total",
			Help:      "Async payload bytes dispatched to the handler.",
		}),
		messagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "messages_dropped_total",
			Help:      "Outbound messages discarded at the queue high-water-mark.",
		}),
		transportFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "transport_faults_total",
			Help:      "Fatal async transport faults.",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirage",
			Name:      "state_transitions_total",
			Help:      "Lifecycle transitions by source and target state.",
		}, []string{"from", "to"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mirage",
			Name:      "running",
			Help:      "1 while the endpoint is in the Running state.",
		}),
	}
}

// Handler returns the scrape handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) OnStateChange(previous, current mirage.State, reason string) {
	c.stateTransitions.WithLabelValues(previous.String(), current.String()).Inc()
	if current == mirage.StateRunning {
		c.running.Set(1)
	} else {
		c.running.Set(0)
	}
}

func (c *Collector) OnMessageSent(bytes int) {
	c.messagesSent.Inc()
	c.bytesSent.Add(float64(bytes))
}

func (c *Collector) OnMessageReceived(bytes int) {
	c.messagesReceived.Inc()
	c.bytesReceived.Add(float64(bytes))
}

func (c *Collector) OnMessageDropped() {
	c.messagesDropped.Inc()
}

func (c *Collector) OnTransportFault(err error) {
	c.transportFaults.Inc()
}
