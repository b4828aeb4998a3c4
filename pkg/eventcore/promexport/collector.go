// Package promexport exposes a dispatcher's metrics snapshot as
// Prometheus metrics. Register the collector with any prometheus
// registry:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(promexport.NewCollector(d))
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
)

// Collector implements prometheus.Collector over a dispatcher's
// immutable metrics snapshot. Each scrape takes a fresh snapshot.
type Collector struct {
	d *eventcore.Dispatcher

	emitted       *prometheus.Desc
	delivered     *prometheus.Desc
	dropped       *prometheus.Desc
	rate          *prometheus.Desc
	subscriptions *prometheus.Desc
	buffered      *prometheus.Desc
	channels      *prometheus.Desc
	utilization   *prometheus.Desc
	memory        *prometheus.Desc
	evictions     *prometheus.Desc
	expirations   *prometheus.Desc
	mwRuns        *prometheus.Desc
	mwFailures    *prometheus.Desc
	mwLatency     *prometheus.Desc
}

// NewCollector creates a collector bound to a dispatcher.
func NewCollector(d *eventcore.Dispatcher) *Collector {
	return &Collector{
		d: d,
		emitted: prometheus.NewDesc("eventcore_events_emitted_total",
			"Events accepted by Emit.", nil, nil),
		delivered: prometheus.NewDesc("eventcore_events_delivered_total",
			"Subscriber callback invocations, replay included.", nil, nil),
		dropped: prometheus.NewDesc("eventcore_events_dropped_total",
			"Events dropped before delivery.", nil, nil),
		rate: prometheus.NewDesc("eventcore_events_per_second",
			"Emission rate over the last minute.", nil, nil),
		subscriptions: prometheus.NewDesc("eventcore_subscriptions_active",
			"Current subscription registry size.", nil, nil),
		buffered: prometheus.NewDesc("eventcore_buffer_events",
			"Currently buffered events.", nil, nil),
		channels: prometheus.NewDesc("eventcore_buffer_channels",
			"Channels holding buffered events.", nil, nil),
		utilization: prometheus.NewDesc("eventcore_buffer_utilization_ratio",
			"Buffered events over aggregate capacity.", nil, nil),
		memory: prometheus.NewDesc("eventcore_buffer_memory_bytes",
			"Estimated buffered payload memory.", nil, nil),
		evictions: prometheus.NewDesc("eventcore_buffer_evictions_total",
			"Capacity evictions.", nil, nil),
		expirations: prometheus.NewDesc("eventcore_buffer_expirations_total",
			"TTL expirations.", nil, nil),
		mwRuns: prometheus.NewDesc("eventcore_middleware_runs_total",
			"Middleware pipeline executions.", nil, nil),
		mwFailures: prometheus.NewDesc("eventcore_middleware_failures_total",
			"Failed middleware pipeline executions.", nil, nil),
		mwLatency: prometheus.NewDesc("eventcore_middleware_latency_seconds_total",
			"Cumulative middleware pipeline latency.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.emitted
	ch <- c.delivered
	ch <- c.dropped
	ch <- c.rate
	ch <- c.subscriptions
	ch <- c.buffered
	ch <- c.channels
	ch <- c.utilization
	ch <- c.memory
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.mwRuns
	ch <- c.mwFailures
	ch <- c.mwLatency
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.d.Metrics()

	ch <- prometheus.MustNewConstMetric(c.emitted, prometheus.CounterValue, float64(m.EventsEmitted))
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(m.EventsDelivered))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(m.EventsDropped))
	ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, m.EventsPerSecond)
	ch <- prometheus.MustNewConstMetric(c.subscriptions, prometheus.GaugeValue, float64(m.ActiveSubscriptions))
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(m.BufferedEvents))
	ch <- prometheus.MustNewConstMetric(c.channels, prometheus.GaugeValue, float64(m.BufferChannels))
	ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, m.BufferUtilization)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(m.BufferMemoryBytes))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(m.BufferEvictions))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(m.BufferExpirations))
	ch <- prometheus.MustNewConstMetric(c.mwRuns, prometheus.CounterValue, float64(m.MiddlewareRuns))
	ch <- prometheus.MustNewConstMetric(c.mwFailures, prometheus.CounterValue, float64(m.MiddlewareFailures))
	ch <- prometheus.MustNewConstMetric(c.mwLatency, prometheus.CounterValue, m.MiddlewareLatencyTotal.Seconds())
}
