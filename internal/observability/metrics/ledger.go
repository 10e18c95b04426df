package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics contains Prometheus metrics for ledger mutations and persistence
type LedgerMetrics struct {
	upsertsTotal     *prometheus.CounterVec
	entriesCreated   prometheus.Counter
	entriesGauge     prometheus.Gauge
	persistTotal     *prometheus.CounterVec
	persistDuration  prometheus.Histogram
	lastPersistGauge prometheus.Gauge

	collectors []prometheus.Collector
}

// NewLedgerMetrics creates and registers ledger metrics
func NewLedgerMetrics(registry prometheus.Registerer) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LedgerMetrics) initMetrics() {
	m.upsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_ledger_upserts_total",
			Help: "Total number of ledger upserts",
		},
		[]string{"freshness"}, // fresh, stale
	)

	m.entriesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshness_ledger_entries_created_total",
		Help: "Total number of products added to the ledger",
	})

	m.entriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "freshness_ledger_entries",
		Help: "Current number of ledger entries",
	})

	m.persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_ledger_persist_total",
			Help: "Total number of durable store writes",
		},
		[]string{"status"},
	)

	m.persistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "freshness_ledger_persist_duration_seconds",
		Help:    "Time taken to write the ledger to the durable store",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.lastPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "freshness_ledger_last_persist_timestamp_seconds",
		Help: "Unix time of the last successful durable store write",
	})

	m.collectors = []prometheus.Collector{
		m.upsertsTotal,
		m.entriesCreated,
		m.entriesGauge,
		m.persistTotal,
		m.persistDuration,
		m.lastPersistGauge,
	}
}

// Describe implements the Collector interface
func (m *LedgerMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *LedgerMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordUpsert records one upsert and whether it created an entry
func (m *LedgerMetrics) RecordUpsert(freshness string, created bool) {
	if m == nil {
		return
	}
	m.upsertsTotal.WithLabelValues(freshness).Inc()
	if created {
		m.entriesCreated.Inc()
	}
}

// SetEntries sets the current entry count
func (m *LedgerMetrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entriesGauge.Set(float64(n))
}

// RecordPersist records a durable store write
func (m *LedgerMetrics) RecordPersist(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(duration.Seconds())
	if err != nil {
		m.persistTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.persistTotal.WithLabelValues(StatusSuccess).Inc()
	m.lastPersistGauge.SetToCurrentTime()
}
