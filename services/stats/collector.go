// Package stats exports value store and topology counters as Prometheus
// metrics and reports them periodically to the log.
package stats

import (
	"sync"

	"github.com/influxdata/flowgraph/topology"
	"github.com/influxdata/flowgraph/value"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowgraph"

// Reporter is anything that reports the statistics of its last run.
// Pipelines, farms and all-to-all topologies are reporters.
type Reporter interface {
	Name() string
	Stats() topology.Stats
}

// Collector is a prometheus.Collector reading a value store and a set of topologies
// at scrape time.
type Collector struct {
	store *value.Store

	mu        sync.RWMutex
	reporters []Reporter

	live      *prometheus.Desc
	peak      *prometheus.Desc
	allocated *prometheus.Desc
	freed     *prometheus.Desc
	received  *prometheus.Desc
	sent      *prometheus.Desc
	running   *prometheus.Desc
	duration  *prometheus.Desc
}

func NewCollector(store *value.Store, reporters ...Reporter) *Collector {
	nodeLabels := []string{"topology", "node"}
	return &Collector{
		store:     store,
		reporters: reporters,
		live: prometheus.NewDesc(prometheus.BuildFQName(namespace, "values", "live"),
			"Number of boxed values not yet consumed.", nil, nil),
		peak: prometheus.NewDesc(prometheus.BuildFQName(namespace, "values", "peak"),
			"Highest number of live values seen.", nil, nil),
		allocated: prometheus.NewDesc(prometheus.BuildFQName(namespace, "values", "allocated_total"),
			"Number of values boxed.", nil, nil),
		freed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "values", "freed_total"),
			"Number of boxes released.", nil, nil),
		received: prometheus.NewDesc(prometheus.BuildFQName(namespace, "node", "received_total"),
			"Values received by a node in the topology's last run.", nodeLabels, nil),
		sent: prometheus.NewDesc(prometheus.BuildFQName(namespace, "node", "sent_total"),
			"Values sent by a node in the topology's last run.", nodeLabels, nil),
		running: prometheus.NewDesc(prometheus.BuildFQName(namespace, "topology", "running"),
			"Whether the topology is running.", []string{"topology"}, nil),
		duration: prometheus.NewDesc(prometheus.BuildFQName(namespace, "topology", "run_duration_seconds"),
			"Wall time of the topology's last run.", []string{"topology"}, nil),
	}
}

// Add registers more topologies to report on.
func (c *Collector) Add(reporters ...Reporter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reporters = append(c.reporters, reporters...)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.peak
	ch <- c.allocated
	ch <- c.freed
	ch <- c.received
	ch <- c.sent
	ch <- c.running
	ch <- c.duration
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.store != nil {
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(c.store.Live()))
		ch <- prometheus.MustNewConstMetric(c.peak, prometheus.GaugeValue, float64(c.store.Peak()))
		ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.CounterValue, float64(c.store.Allocated()))
		ch <- prometheus.MustNewConstMetric(c.freed, prometheus.CounterValue, float64(c.store.Freed()))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.reporters {
		s := r.Stats()
		if s.Run == "" {
			continue
		}
		running := 0.0
		if s.Running {
			running = 1
		}
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running, s.Topology)
		ch <- prometheus.MustNewConstMetric(c.duration, prometheus.GaugeValue, s.Duration.Seconds(), s.Topology)
		for _, n := range s.Nodes {
			ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(n.Received), s.Topology, n.Node)
			ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(n.Sent), s.Topology, n.Node)
		}
	}
}
