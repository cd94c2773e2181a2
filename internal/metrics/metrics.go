package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the process
	Registry = prometheus.NewRegistry()

	// SyncOutcomes counts store mutators by operation and remote outcome
	SyncOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_sync_total", Help: "Store mutations by op and remote sync outcome."},
		[]string{"op", "outcome"},
	)
	// QuoteCache counts AI quote cache lookups by result
	QuoteCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quote_cache_total", Help: "Quote cache lookups by result."},
		[]string{"result"},
	)
	// QuoteRateLimited counts quote requests rejected by the rate ledger
	QuoteRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "quote_rate_limited_total", Help: "Quote requests rejected by the rate ledger."},
	)
	// QuoteFallbacks counts deterministic fallback quotes served on AI failure
	QuoteFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "quote_fallbacks_total", Help: "Deterministic fallback quotes served."},
	)
	// RealtimeEvents counts push-channel change events by kind
	RealtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_events_total", Help: "Realtime change events by kind."},
		[]string{"type"},
	)
	// PingsDropped counts GPS pings thinned out by the rate cap
	PingsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "gps_pings_dropped_total", Help: "GPS pings dropped by the rate cap."},
	)
	// RemoteLatency records remote gateway call durations in seconds
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "remote_call_duration_seconds", Help: "Remote gateway call duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"collection", "op"},
	)
)

// RegisterDefault registers collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SyncOutcomes)
		Registry.MustRegister(QuoteCache)
		Registry.MustRegister(QuoteRateLimited)
		Registry.MustRegister(QuoteFallbacks)
		Registry.MustRegister(RealtimeEvents)
		Registry.MustRegister(PingsDropped)
		Registry.MustRegister(RemoteLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
