package prometheus

import (
	"net/http"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *teamauth.Engine.
type MetricsSource interface {
	MetricsSnapshot() teamauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   teamauth.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   teamauth.MetricID
	desc *prometheus.Desc
}

// Collector reads an engine snapshot on every scrape. It never mutates the engine.
type Collector struct {
	source       MetricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:       source,
		counters:     make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:   make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, "Audit events dropped because the dispatcher buffer was full.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(snapshot.Counters[d.id]))
	}

	bounds := internaldefs.BucketBoundsSeconds()
	for _, d := range c.histograms {
		h, ok := snapshot.Latencies[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(h)
		buckets := make(map[float64]uint64, len(bounds))
		for i, le := range bounds {
			buckets[le] = cumulative[i]
		}
		ch <- prometheus.MustNewConstHistogram(d.desc, h.Count, h.Sum.Seconds(), buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// NewRegistry returns a registry holding the engine collector plus the Go runtime and
// process collectors.
func NewRegistry(source MetricsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry from [NewRegistry] in the Prometheus exposition format.
func Handler(source MetricsSource) http.Handler {
	reg := NewRegistry(source)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
