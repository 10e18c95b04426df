// Package observability wires the Prometheus registry and its HTTP handler.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/freshness-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Ledger    *metrics.LedgerMetrics
	Processor *metrics.ProcessorMetrics
}

// NewMetrics creates a registry with runtime collectors and the
// application's own metrics.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	ledgerMetrics, err := metrics.NewLedgerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger metrics: %w", err)
	}

	processorMetrics, err := metrics.NewProcessorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Ledger:    ledgerMetrics,
		Processor: processorMetrics,
	}, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
