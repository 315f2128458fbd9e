package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything that reports pool statistics.
type StatsSource interface {
	Stats() Stats
}

// Collector exports the statistics of one or more pools as Prometheus
// metrics labelled by pool name.
type Collector struct {
	sources []StatsSource

	idle      *prometheus.Desc
	borrowed  *prometheus.Desc
	waiting   *prometheus.Desc
	size      *prometheus.Desc
	created   *prometheus.Desc
	destroyed *prometheus.Desc
	borrows   *prometheus.Desc
	timeouts  *prometheus.Desc
	gen       *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over sources.
func NewCollector(sources ...StatsSource) *Collector {
	labels := []string{"pool"}
	return &Collector{
		sources:   sources,
		idle:      prometheus.NewDesc("wspool_stubs_idle", "Stubs waiting in the pool", labels, nil),
		borrowed:  prometheus.NewDesc("wspool_stubs_borrowed", "Stubs currently lent to callers", labels, nil),
		waiting:   prometheus.NewDesc("wspool_borrow_waiting", "Callers waiting for a stub", labels, nil),
		size:      prometheus.NewDesc("wspool_pool_size", "Maximum number of stubs lent at once", labels, nil),
		created:   prometheus.NewDesc("wspool_stubs_created_total", "Stubs built by the factory", labels, nil),
		destroyed: prometheus.NewDesc("wspool_stubs_destroyed_total", "Stubs discarded by the pool", labels, nil),
		borrows:   prometheus.NewDesc("wspool_borrows_total", "Successful borrows", labels, nil),
		timeouts:  prometheus.NewDesc("wspool_borrow_timeouts_total", "Borrows that gave up waiting for a stub", labels, nil),
		gen:       prometheus.NewDesc("wspool_generation", "Configuration generation", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.idle
	ch <- c.borrowed
	ch <- c.waiting
	ch <- c.size
	ch <- c.created
	ch <- c.destroyed
	ch <- c.borrows
	ch <- c.timeouts
	ch <- c.gen
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		s := src.Stats()
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, s.Name)
		}
		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), s.Name)
		}
		gauge(c.idle, float64(s.Idle))
		gauge(c.borrowed, float64(s.Borrowed))
		gauge(c.waiting, float64(s.Waiting))
		gauge(c.size, float64(s.Size))
		counter(c.created, s.Created)
		counter(c.destroyed, s.Destroyed)
		counter(c.borrows, s.Borrows)
		counter(c.timeouts, s.Timeouts)
		gauge(c.gen, float64(s.Generation))
	}
}

// RegisterMetrics registers a collector over sources with reg. A nil reg
// means the default registerer.
func RegisterMetrics(reg prometheus.Registerer, sources ...StatsSource) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(NewCollector(sources...))
}
