package observability

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	nav                *prometheus.GaugeVec
	shareSupply        prometheus.Gauge
	pendingShares      prometheus.Gauge
	availableLiquidity prometheus.Gauge
	queueDepth         prometheus.Gauge
	activeLoans        prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry that records
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditvault",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditvault",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "creditvault",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditvault",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Requests rejected by rate limiting or auth policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records one handled request.
func (m *moduleMetrics) Observe(module, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(elapsed.Seconds())
}

// RecordError records one failed request with its RPC error code.
func (m *moduleMetrics) RecordError(module, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(module, method, code).Inc()
}

// RecordThrottle records a rejected request.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics returns the registry tracking the vault's balance sheet.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			nav: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "nav",
				Help:      "Net asset value in settlement base units, segmented by component.",
			}, []string{"component"}),
			shareSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "share_supply",
				Help:      "Outstanding claim tokens in base units.",
			}),
			pendingShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "pending_shares",
				Help:      "Claim tokens burned into the redemption queue but not yet paid.",
			}),
			availableLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "available_liquidity",
				Help:      "Settlement units available for loan funding after the buffer.",
			}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "redemption_queue_depth",
				Help:      "Number of queued redemption requests.",
			}),
			activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditvault",
				Subsystem: "ledger",
				Name:      "active_loans",
				Help:      "Loans with an outstanding settlement milestone.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.nav,
			ledgerRegistry.shareSupply,
			ledgerRegistry.pendingShares,
			ledgerRegistry.availableLiquidity,
			ledgerRegistry.queueDepth,
			ledgerRegistry.activeLoans,
		)
	})
	return ledgerRegistry
}

// SetNAV records a NAV component value.
func (m *ledgerMetrics) SetNAV(component string, value *big.Int) {
	if m == nil {
		return
	}
	m.nav.WithLabelValues(component).Set(bigFloat(value))
}

// SetSupply records the claim-token supply and queued pending shares.
func (m *ledgerMetrics) SetSupply(supply, pending *big.Int) {
	if m == nil {
		return
	}
	m.shareSupply.Set(bigFloat(supply))
	m.pendingShares.Set(bigFloat(pending))
}

// SetLiquidity records the post-buffer lendable balance.
func (m *ledgerMetrics) SetLiquidity(value *big.Int) {
	if m == nil {
		return
	}
	m.availableLiquidity.Set(bigFloat(value))
}

// SetQueueDepth records the redemption queue length.
func (m *ledgerMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// SetActiveLoans records the active loan count.
func (m *ledgerMetrics) SetActiveLoans(count int) {
	if m == nil {
		return
	}
	m.activeLoans.Set(float64(count))
}

func bigFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
