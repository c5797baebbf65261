// Package metrics exposes router observations as Prometheus series.
package metrics

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dayuer/kaapav-go/internal/bus"
)

const namespace = "kaapav"

// Collector counts bus events.
type Collector struct {
	registry *prometheus.Registry
	handler  fiber.Handler

	events   *prometheus.CounterVec
	messages *prometheus.CounterVec
	actions  *prometheus.CounterVec
}

// Gauges are sampled on scrape.
type Gauges struct {
	ActiveLanes func() float64
	BusPending  func() float64
	BusDropped  func() float64
}

// New creates a collector with its own registry.
func New(g Gauges) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Router observations by event name.",
		}, []string{"event"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "WhatsApp messages by direction.",
		}, []string{"direction"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions.",
		}, []string{"action"}),
	}

	gauge := func(name, help string, fn func() float64) {
		if fn == nil {
			return
		}
		f.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, fn)
	}
	gauge("lanes_active", "User lanes with a running worker.", g.ActiveLanes)
	gauge("bus_pending", "Observations waiting for delivery.", g.BusPending)
	gauge("bus_dropped_total", "Observations dropped because the bus was full.", g.BusDropped)

	c.handler = adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return c
}

// Attach counts every event published on b.
func (c *Collector) Attach(b *bus.MessageBus) {
	b.Subscribe(bus.Wildcard, c.Observe)
}

// Observe counts one event.
func (c *Collector) Observe(ev bus.Event) {
	c.events.WithLabelValues(ev.Name).Inc()
	switch ev.Name {
	case bus.EventIncomingMessage:
		c.messages.WithLabelValues("in").Inc()
	case bus.EventOutgoingMessage:
		c.messages.WithLabelValues("out").Inc()
	case bus.EventRouteAction:
		if a, ok := ev.Payload["action"].(string); ok {
			c.actions.WithLabelValues(a).Inc()
		}
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the exposition format.
func (c *Collector) Handler(ctx *fiber.Ctx) error {
	return c.handler(ctx)
}
