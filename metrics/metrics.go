// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wraps prometheus registration the way the DHT core wants
// it: registries fanned in through a MultiGatherer, one named gatherer per
// space, so a process hosting many spaces can still expose a single /metrics
// endpoint. Metric names are not prefixed per space.
package metrics

import (
	luxmetric "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer is an interface for registering prometheus metrics.
type Registerer interface {
	prometheus.Registerer
}

// Registry is an interface for a prometheus registry.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry creates a new prometheus registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer collects metrics from multiple named sources, one per space.
type MultiGatherer interface {
	prometheus.Gatherer

	// Register adds a new gatherer under name (typically the DNA hash).
	Register(name string, gatherer prometheus.Gatherer) error
}

type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer creates a new multi-gatherer.
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{
		gatherers: make(map[string]prometheus.Gatherer),
	}
}

func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, families...)
	}
	return result, nil
}

// AsLuxMetric exposes mg as a github.com/luxfi/metric.Gatherer, the
// namespaced-subsystem-registration shape runtime/runtime.go's own
// MultiGatherer is built over, so a process hosting several dhtcore spaces
// alongside other luxfi subsystems can fold this module's metrics into one
// shared luxfi/metric registry instead of exposing a second /metrics
// endpoint.
func AsLuxMetric(mg MultiGatherer) luxmetric.Gatherer {
	return mg
}

// WorkflowMetrics tracks one queue consumer (sys validation, app validation,
// or integration) within a space: how many ops it has processed, how many
// it rejected, and how deep its limbo currently is.
type WorkflowMetrics interface {
	Processed() prometheus.Counter
	Rejected() prometheus.Counter
	Abandoned() prometheus.Counter
	LimboDepth() prometheus.Gauge
}

// NewWorkflowMetrics registers counters/gauges for a named workflow
// ("sys_validation", "app_validation", "integration") under namespace.
func NewWorkflowMetrics(namespace, workflow string, registerer prometheus.Registerer) (WorkflowMetrics, error) {
	m := &workflowMetrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   workflow,
			Name:        "processed_total",
			Help:        "Number of ops this workflow has finished processing.",
			ConstLabels: prometheus.Labels{"workflow": workflow},
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   workflow,
			Name:        "rejected_total",
			Help:        "Number of ops permanently rejected by this workflow.",
			ConstLabels: prometheus.Labels{"workflow": workflow},
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   workflow,
			Name:        "abandoned_total",
			Help:        "Number of ops abandoned after exceeding max retries.",
			ConstLabels: prometheus.Labels{"workflow": workflow},
		}),
		limboDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   workflow,
			Name:        "limbo_depth",
			Help:        "Number of ops currently pending in this workflow's limbo.",
			ConstLabels: prometheus.Labels{"workflow": workflow},
		}),
	}
	for _, c := range []prometheus.Collector{m.processed, m.rejected, m.abandoned, m.limboDepth} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type workflowMetrics struct {
	processed  prometheus.Counter
	rejected   prometheus.Counter
	abandoned  prometheus.Counter
	limboDepth prometheus.Gauge
}

func (m *workflowMetrics) Processed() prometheus.Counter { return m.processed }
func (m *workflowMetrics) Rejected() prometheus.Counter  { return m.rejected }
func (m *workflowMetrics) Abandoned() prometheus.Counter { return m.abandoned }
func (m *workflowMetrics) LimboDepth() prometheus.Gauge  { return m.limboDepth }
