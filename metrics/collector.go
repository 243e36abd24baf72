// Package metrics exports processor statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richinsley/gofsr/upscaler"
)

// StatsSource is anything that can report processor statistics from any
// goroutine.
type StatsSource interface {
	Stats() upscaler.Stats
}

type collector struct {
	source   StatsSource
	metrics  []metric
	fallback *prometheus.Desc
}

type metric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(stats upscaler.Stats) float64
}

// NewCollector returns a collector reading source on every scrape.
func NewCollector(source StatsSource) prometheus.Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("gofsr", "", name), help, labels, nil)
	}

	c := &collector{
		source:   source,
		fallback: desc("fallback_total", "Failed frames shown through a fallback path.", "kind"),
	}
	c.metrics = []metric{
		{
			desc:      desc("frames_total", "Frames upscaled through the full pipeline."),
			valueType: prometheus.CounterValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.Frames) },
		},
		{
			desc:      desc("stage_failures_total", "Pipeline and copy-through stage failures."),
			valueType: prometheus.CounterValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.StageFailures) },
		},
		{
			desc:      desc("degradations_total", "Forced fallbacks to the basic variant."),
			valueType: prometheus.CounterValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.Degradations) },
		},
		{
			desc:      desc("disables_total", "Times upscaling disabled itself."),
			valueType: prometheus.CounterValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.Disables) },
		},
		{
			desc:      desc("state", "Processor state (0 uninitialized, 1 initializing, 2 ready, 3 processing, 4 degraded, 5 disabled)."),
			valueType: prometheus.GaugeValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.State) },
		},
		{
			desc:      desc("render_width", "Render resolution width in pixels."),
			valueType: prometheus.GaugeValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.RenderWidth) },
		},
		{
			desc:      desc("render_height", "Render resolution height in pixels."),
			valueType: prometheus.GaugeValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.RenderHeight) },
		},
		{
			desc:      desc("generation", "ID of the live render-target generation, 0 when none."),
			valueType: prometheus.GaugeValue,
			extract:   func(s upscaler.Stats) float64 { return float64(s.Generation) },
		},
	}
	return c
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
	ch <- c.fallback
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	stats := c.source.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.extract(stats))
	}
	ch <- prometheus.MustNewConstMetric(c.fallback, prometheus.CounterValue, float64(stats.CopyThroughs), "copy_through")
	ch <- prometheus.MustNewConstMetric(c.fallback, prometheus.CounterValue, float64(stats.DirectBlits), "direct_blit")
}

// Handler serves the collector, plus Go runtime metrics, in the Prometheus text
// format.
func Handler(source StatsSource) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(source),
		prometheus.NewGoCollector(),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
