package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_quote_requests_total",
			Help: "Total number of quote requests sent to the aggregator",
		},
		[]string{"swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_engine_quote_duration_seconds",
			Help:    "Aggregator quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"swap_mode"},
	)

	QuotesSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_quotes_superseded_total",
		Help: "Total number of quote responses dropped because a newer request was issued",
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_engine_price_impact_bps",
			Help:    "Price impact in basis points",
			Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
		},
		[]string{"severity"},
	)

	// Transaction build metrics
	BuildRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_build_requests_total",
			Help: "Total number of swap transaction build requests",
		},
		[]string{"status"},
	)

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_engine_build_duration_seconds",
		Help:    "Swap transaction build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Simulation metrics
	SimulationRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_simulation_requests_total",
		Help: "Total number of transaction simulations",
	})

	SimulationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_simulation_failures_total",
			Help: "Total number of failed transaction simulations",
		},
		[]string{"reason"},
	)

	ComputeUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_engine_compute_units",
		Help:    "Compute units consumed by simulated transactions",
		Buckets: []float64{1000, 5000, 10000, 50000, 100000, 200000, 400000, 1400000},
	})

	// Submission metrics
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_submissions_total",
			Help: "Total number of signed transactions broadcast",
		},
		[]string{"status"},
	)

	ConfirmationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_engine_confirmation_duration_seconds",
			Help:    "Time from broadcast to terminal status",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"status"},
	)

	SwapOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_swap_outcomes_total",
			Help: "Terminal outcomes of swap executions",
		},
		[]string{"kind", "outcome"},
	)

	RecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_record_failures_total",
		Help: "Total number of transaction records that could not be persisted",
	})

	// RPC metrics
	RPCEndpointLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swap_engine_rpc_endpoint_latency_seconds",
			Help: "Last measured health-check latency per RPC endpoint",
		},
		[]string{"endpoint"},
	)

	RPCEndpointHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swap_engine_rpc_endpoint_healthy",
			Help: "1 if the RPC endpoint passed its last health check",
		},
		[]string{"endpoint"},
	)

	BlockhashRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_blockhash_refreshes_total",
			Help: "Total number of latest-blockhash refreshes",
		},
		[]string{"status"},
	)

	// Token registry metrics
	TokenListSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swap_engine_token_list_size",
		Help: "Number of tokens in the active registry",
	})

	TokenListRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_token_list_refreshes_total",
			Help: "Total number of token list refreshes by provider and status",
		},
		[]string{"provider", "status"},
	)

	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_price_cache_hits_total",
		Help: "Total number of price lookups served from cache",
	})

	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_price_cache_misses_total",
		Help: "Total number of price lookups that went upstream",
	})

	// Portfolio metrics
	PortfolioRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_portfolio_refreshes_total",
			Help: "Total number of wallet balance refreshes",
		},
		[]string{"trigger", "status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_engine_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swap_engine_http_in_flight_requests",
		Help: "Number of HTTP requests being served",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_engine_http_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
)

// ImpactSeverity buckets a price impact in bps into a label.
func ImpactSeverity(bps float64) string {
	switch {
	case bps < 10:
		return "none"
	case bps < 100:
		return "low"
	case bps < 300:
		return "moderate"
	case bps < 500:
		return "high"
	default:
		return "extreme"
	}
}
