package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketplaceMetrics

	supplyMetricsOnce sync.Once
	supplyRegistry    *SupplyMetrics

	presaleMetricsOnce sync.Once
	presaleRegistry    *PresaleMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record HTTP module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "deedchain",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "deedchain",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "deedchain",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// MarketplaceMetrics wraps collectors tracking settlement activity.
type MarketplaceMetrics struct {
	purchases *prometheus.CounterVec
	volume    *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// Marketplace exposes the metrics registry for the settlement engine.
func Marketplace() *MarketplaceMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketplaceMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "deedchain",
				Subsystem: "marketplace",
				Name:      "purchases_total",
				Help:      "Count of settled unit purchases segmented by buyer kind.",
			}, []string{"buyer_kind"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "deedchain",
				Subsystem: "marketplace",
				Name:      "volume_stable_units",
				Help:      "Settled stable-currency volume in base units segmented by buyer kind.",
			}, []string{"buyer_kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "deedchain",
				Subsystem: "marketplace",
				Name:      "failures_total",
				Help:      "Count of purchase failures segmented by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			marketRegistry.purchases,
			marketRegistry.volume,
			marketRegistry.failures,
		)
	})
	return marketRegistry
}

// RecordPurchase records a settled purchase and its stable-currency volume.
func (m *MarketplaceMetrics) RecordPurchase(designatedBuyer bool, price *big.Int) {
	if m == nil {
		return
	}
	kind := "third_party"
	if designatedBuyer {
		kind = "designated_buyer"
	}
	m.purchases.WithLabelValues(kind).Inc()
	m.volume.WithLabelValues(kind).Add(bigToFloat(price))
}

// RecordFailure increments the failure counter for the supplied reason.
// Reasons should be stable strings so dashboards and alerts remain consistent.
func (m *MarketplaceMetrics) RecordFailure(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.failures.WithLabelValues(reason).Inc()
}

// SupplyMetrics tracks the reward-token supply counters and the reservation
// level of the reward pool.
type SupplyMetrics struct {
	ownerMinted prometheus.Gauge
	poolMinted  prometheus.Gauge
	reserved    prometheus.Gauge
}

// Supply exposes the metrics registry for reward supply tracking.
func Supply() *SupplyMetrics {
	supplyMetricsOnce.Do(func() {
		supplyRegistry = &SupplyMetrics{
			ownerMinted: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "deedchain",
				Subsystem: "reward",
				Name:      "owner_minted_units",
				Help:      "Reward tokens minted against the owner allowance.",
			}),
			poolMinted: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "deedchain",
				Subsystem: "reward",
				Name:      "pool_minted_units",
				Help:      "Reward tokens minted against the reward-pool allowance, net of burns.",
			}),
			reserved: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "deedchain",
				Subsystem: "reward",
				Name:      "reserved_units",
				Help:      "Reward tokens reserved for future unit purchases.",
			}),
		}
		prometheus.MustRegister(
			supplyRegistry.ownerMinted,
			supplyRegistry.poolMinted,
			supplyRegistry.reserved,
		)
	})
	return supplyRegistry
}

// Record updates the supply gauges from the current ledger counters.
func (m *SupplyMetrics) Record(ownerMinted, poolMinted, reserved *big.Int) {
	if m == nil {
		return
	}
	m.ownerMinted.Set(bigToFloat(ownerMinted))
	m.poolMinted.Set(bigToFloat(poolMinted))
	m.reserved.Set(bigToFloat(reserved))
}

// PresaleMetrics tracks crowdsale progress.
type PresaleMetrics struct {
	sold   prometheus.Gauge
	raised prometheus.Gauge
}

// Presale exposes the metrics registry for the crowdsale engine.
func Presale() *PresaleMetrics {
	presaleMetricsOnce.Do(func() {
		presaleRegistry = &PresaleMetrics{
			sold: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "deedchain",
				Subsystem: "presale",
				Name:      "tokens_sold_units",
				Help:      "Reward tokens sold so far in the presale.",
			}),
			raised: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "deedchain",
				Subsystem: "presale",
				Name:      "raised_stable_units",
				Help:      "Stable currency raised so far in the presale, in base units.",
			}),
		}
		prometheus.MustRegister(presaleRegistry.sold, presaleRegistry.raised)
	})
	return presaleRegistry
}

// Record updates the presale gauges.
func (m *PresaleMetrics) Record(sold, raised *big.Int) {
	if m == nil {
		return
	}
	m.sold.Set(bigToFloat(sold))
	m.raised.Set(bigToFloat(raised))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
