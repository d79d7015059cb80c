package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entcal_cache_lookups_total",
		Help: "Month cache lookups, labelled by result (fresh, stale, miss).",
	}, []string{"result"})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entcal_cache_evictions_total",
		Help: "Month cache entries evicted to stay under the size limit.",
	})

	CommitsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entcal_cache_commits_dropped_total",
		Help: "Fetch results not stored because a newer request generation was issued.",
	})

	FetchesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entcal_fetches_coalesced_total",
		Help: "Month loads that joined an in-flight fetch instead of issuing one.",
	})

	BackendFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entcal_backend_fetches_total",
		Help: "Backend calendar RPC attempts, labelled by entity kind and outcome.",
	}, []string{"kind", "outcome"})

	BackendFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entcal_backend_fetch_duration_seconds",
		Help:    "Latency of a single backend calendar RPC attempt.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entcal_fetch_retries_total",
		Help: "Backend fetch attempts repeated after a failure.",
	})

	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entcal_stale_responses_dropped_total",
		Help: "View responses discarded because the view moved to another month.",
	})

	EventClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entcal_event_clicks_total",
		Help: "Event navigation requests, labelled by result (accepted, rejected).",
	}, []string{"result"})

	PrewarmRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entcal_prewarm_runs_total",
		Help: "Scheduled cache prewarm runs, labelled by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entcal_http_requests_total",
		Help: "HTTP requests served, labelled by route pattern and status code.",
	}, []string{"route", "code"})
)
