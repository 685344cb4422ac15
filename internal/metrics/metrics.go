// Package metrics exposes object lifecycle events as prometheus metrics.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mgx3d/tkutil/internal/event"
)

const (
	namespace          = "mgx3d"
	objectsSubsystem   = "objects"
	registrySubsystem  = "registry"
	destroyModeSelf    = "self"
	destroyModeOwner   = "owner"
	registryOpRegister = "register"
	registryOpRemove   = "unregister"
	registryOpDrop     = "drop"
)

// Collector counts the lifecycle events published on a bus.
type Collector struct {
	registry *prometheus.Registry

	notifications prometheus.Counter
	callbacks     prometheus.Counter
	destroyed     *prometheus.CounterVec
	unavailable   prometheus.Counter
	registryOps   *prometheus.CounterVec
	registrySize  prometheus.Gauge

	mu   sync.Mutex
	bus  *event.Bus
	subs []string
}

// NewCollector creates a collector with its own prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: objectsSubsystem,
			Name:      "modification_notifications_total",
			Help:      "Total number of modification notifications sent by objects.",
		}),
		callbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: objectsSubsystem,
			Name:      "observer_callbacks_total",
			Help:      "Total number of observer callbacks run for modification notifications.",
		}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: objectsSubsystem,
			Name:      "destroyed_total",
			Help:      "Total number of destroyed objects by teardown mode.",
		}, []string{"mode"}),
		unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: objectsSubsystem,
			Name:      "emergency_cleanups_total",
			Help:      "Total number of emergency cleanups.",
		}),
		registryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "operations_total",
			Help:      "Total number of registry changes by operation.",
		}, []string{"op"}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "objects",
			Help:      "Number of objects currently registered.",
		}),
	}

	c.registry.MustRegister(
		c.notifications,
		c.callbacks,
		c.destroyed,
		c.unavailable,
		c.registryOps,
		c.registrySize,
	)
	return c
}

// Registry returns the prometheus registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Attach subscribes the collector to bus. A collector follows one bus at a
// time; attaching again detaches from the previous one.
func (c *Collector) Attach(bus *event.Bus) {
	c.Detach()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bus = bus
	for _, pattern := range []string{"object.*", "registry.*"} {
		// Both patterns are constant and valid.
		if id, err := bus.SubscribePattern(pattern, c.handle); err == nil {
			c.subs = append(c.subs, id)
		}
	}
}

// Detach unsubscribes the collector from its bus.
func (c *Collector) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bus == nil {
		return
	}
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.bus = nil
	c.subs = nil
}

func (c *Collector) handle(e event.Event) {
	switch ev := e.(type) {
	case event.ObjectModifiedEvent:
		c.notifications.Inc()
		c.callbacks.Add(float64(ev.Observers))
	case event.ObjectDestroyedEvent:
		mode := destroyModeOwner
		if ev.SelfDestruct {
			mode = destroyModeSelf
		}
		c.destroyed.WithLabelValues(mode).Inc()
	case event.ObjectUnavailableEvent:
		c.unavailable.Inc()
	case event.ObjectRegisteredEvent:
		c.registryOps.WithLabelValues(registryOpRegister).Inc()
		c.registrySize.Set(float64(ev.Registered))
	case event.ObjectUnregisteredEvent:
		op := registryOpRemove
		if ev.Destroyed {
			op = registryOpDrop
		}
		c.registryOps.WithLabelValues(op).Inc()
		c.registrySize.Set(float64(ev.Registered))
	}
}

// Sample is one gathered metric value.
type Sample struct {
	Name   string  `json:"name"`
	Labels string  `json:"labels,omitempty"`
	Value  float64 `json:"value"`
}

// Snapshot gathers the current metric values, sorted by name and labels.
func (c *Collector) Snapshot() ([]Sample, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			samples = append(samples, Sample{
				Name:   mf.GetName(),
				Labels: formatLabels(m.GetLabel()),
				Value:  value(mf.GetType(), m),
			})
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func value(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	return strings.Join(parts, ",")
}
