package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odinboard_cache_hits_total",
		Help: "Cache-aside hits per TTL class",
	}, []string{"class"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odinboard_cache_misses_total",
		Help: "Cache-aside misses per TTL class",
	}, []string{"class"})

	CacheStaleServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odinboard_cache_stale_served_total",
		Help: "Stale payloads served after an upstream failure",
	}, []string{"class"})

	UpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_upstream_errors_total",
		Help: "Upstream fetches that exhausted their retries",
	})

	SyncCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_sync_cycles_total",
		Help: "Committed merge cycles",
	})

	SyncCyclesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_sync_cycles_discarded_total",
		Help: "Cycles discarded because a newer cycle already committed",
	})

	SyncNewTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_sync_new_tokens_total",
		Help: "Newly arrived tokens detected by the merge step",
	})

	CreatorsAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_creators_aggregated_total",
		Help: "Fresh creator aggregations (cache reuse excluded)",
	})

	CreatorsReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odinboard_creators_reused_total",
		Help: "Creator records served from the reuse cache",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
