package prometheus

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/authdb"
	"github.com/MrEthical07/authdb/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authdb.MetricsSnapshot
	AuditDropped() uint64
}

type histogramDesc struct {
	id   authdb.MetricID
	desc *prom.Desc
}

type counterDesc struct {
	id   authdb.MetricID
	desc *prom.Desc
}

// PrometheusExporter is a [prom.Collector] over an authdb metrics snapshot.
// Every scrape reads one fresh snapshot.
type PrometheusExporter struct {
	source     metricsSource
	counters   []counterDesc
	histograms []histogramDesc
	dropped    *prom.Desc
	bounds     []float64
}

// NewPrometheusExporter creates an exporter that reads from db.
func NewPrometheusExporter(db *authdb.DB) *PrometheusExporter {
	return NewPrometheusExporterFromSource(db)
}

// NewPrometheusExporterFromSource creates an exporter over any snapshot
// source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:  source,
		dropped: prom.NewDesc("authdb_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, histogramDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	// the last core bucket is +Inf, which const histograms add on their own
	for _, le := range internaldefs.HistogramBounds[:len(internaldefs.HistogramBounds)-1] {
		v, _ := strconv.ParseFloat(le, 64)
		p.bounds = append(p.bounds, v)
	}
	return p
}

func (p *PrometheusExporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.dropped
}

// Collect emits nothing while metrics are disabled and no audit event was
// dropped.
func (p *PrometheusExporter) Collect(ch chan<- prom.Metric) {
	if p.source == nil {
		return
	}
	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		buckets := make(map[float64]uint64, len(p.bounds))
		for i, le := range p.bounds {
			buckets[le] = cumulative[i]
		}
		// core snapshots carry no sum
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prom.MustNewConstMetric(p.dropped, prom.CounterValue, float64(dropped))
}

// Register adds the exporter to reg.
func (p *PrometheusExporter) Register(reg prom.Registerer) error {
	return reg.Register(p)
}

// Handler serves the exporter from a private registry, so nothing leaks into
// prom.DefaultRegisterer.
func (p *PrometheusExporter) Handler() http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(p)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
