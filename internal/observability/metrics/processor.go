package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProcessorMetrics contains Prometheus metrics for batch detection handling
type ProcessorMetrics struct {
	detectionsTotal *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	publishTotal    *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewProcessorMetrics creates and registers processor metrics
func NewProcessorMetrics(registry prometheus.Registerer) (*ProcessorMetrics, error) {
	m := &ProcessorMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ProcessorMetrics) initMetrics() {
	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_detections_total",
			Help: "Total number of raw detections by decode outcome",
		},
		[]string{"outcome"}, // accepted, below_threshold, invalid_label
	)

	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_batches_total",
			Help: "Total number of detection batches",
		},
		[]string{"status"},
	)

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "freshness_batch_duration_seconds",
		Help:    "Time taken to decode, fold and persist one batch",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_mqtt_publish_total",
			Help: "Total number of batch results published over MQTT",
		},
		[]string{"status"},
	)

	m.collectors = []prometheus.Collector{
		m.detectionsTotal,
		m.batchesTotal,
		m.batchDuration,
		m.publishTotal,
	}
}

// Describe implements the Collector interface
func (m *ProcessorMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ProcessorMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDetection records the decode outcome of one raw detection
func (m *ProcessorMetrics) RecordDetection(outcome string) {
	if m == nil {
		return
	}
	m.detectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch records a finished batch
func (m *ProcessorMetrics) RecordBatch(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.batchesTotal.WithLabelValues(status).Inc()
}

// RecordPublish records an MQTT publish attempt
func (m *ProcessorMetrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.publishTotal.WithLabelValues(status).Inc()
}
