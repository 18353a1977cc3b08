// Package metrics exposes Prometheus counters for HTTP traffic and the
// domain events reported through the service observers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sheetstock/internal/core/types"
	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/reconciliation"
	"sheetstock/internal/domain/sales"
)

var (
	_ inventory.Observer      = (*Metrics)(nil)
	_ ledger.Observer         = (*Metrics)(nil)
	_ reconciliation.Observer = (*Metrics)(nil)
	_ sales.Observer          = (*Metrics)(nil)
)

// Metrics holds all sheetstock metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	SalesCommitted prometheus.Counter
	SalesAborted   *prometheus.CounterVec
	SalesRevenue   prometheus.Counter
	Allocations    *prometheus.CounterVec
	LedgerPostings *prometheus.CounterVec
	BalanceRepairs *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Namespace string
	// GoCollectors registers the Go runtime and process collectors.
	GoCollectors bool
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() *Config {
	return &Config{Namespace: "sheetstock", GoCollectors: true}
}

// New creates a new Metrics instance.
func New(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}
	registry := prometheus.NewRegistry()
	if config.GoCollectors {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.SalesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "sales_committed_total",
		Help:      "Sales committed",
	})
	m.SalesAborted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sales_aborted_total",
			Help:      "Sales rolled back, by error code",
		},
		[]string{"code"},
	)
	m.SalesRevenue = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "sales_revenue_total",
		Help:      "Sum of committed sale totals",
	})
	m.Allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "inventory_allocations_total",
			Help:      "FIFO batch portions taken, by whether the batch had a cost basis",
		},
		[]string{"costed"},
	)
	m.LedgerPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_postings_total",
			Help:      "Ledger lines appended",
		},
		[]string{"kind", "type"},
	)
	m.BalanceRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "reconciliation_corrections_total",
			Help:      "Party balances repaired by reconciliation",
		},
		[]string{"kind"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SalesCommitted,
		m.SalesAborted,
		m.SalesRevenue,
		m.Allocations,
		m.LedgerPostings,
		m.BalanceRepairs,
	)
	return m
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) SaleCommitted(total types.Money) {
	m.SalesCommitted.Inc()
	m.SalesRevenue.Add(total.InexactFloat64())
}

func (m *Metrics) SaleAborted(code string) {
	m.SalesAborted.WithLabelValues(code).Inc()
}

func (m *Metrics) Allocated(costKnown bool) {
	m.Allocations.WithLabelValues(strconv.FormatBool(costKnown)).Inc()
}

func (m *Metrics) Posted(kind ledger.PartyKind, t ledger.TxType) {
	m.LedgerPostings.WithLabelValues(string(kind), string(t)).Inc()
}

func (m *Metrics) Corrected(kind ledger.PartyKind) {
	m.BalanceRepairs.WithLabelValues(string(kind)).Inc()
}
