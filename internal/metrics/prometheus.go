package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwizard_chat_requests_total",
			Help: "Chat requests by routing path and outcome",
		},
		[]string{"route", "outcome"},
	)

	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockwizard_completion_duration_seconds",
			Help:    "Completion engine latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwizard_llm_tokens_used_total",
			Help: "Tokens reported by the completion engine",
		},
		[]string{"model", "type"},
	)

	FallbackAnswers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwizard_fallback_answers_total",
			Help: "Requests answered with the fixed fallback message",
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwizard_search_results_count",
			Help:    "Organic results returned per web search",
			Buckets: []float64{0, 1, 2, 3, 5, 7},
		},
	)

	SearchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwizard_search_failures_total",
			Help: "Web searches that degraded to the error placeholder",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwizard_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwizard_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ContextPassages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwizard_context_passages_count",
			Help:    "Reference document passages used as prompt context",
			Buckets: []float64{0, 1, 2},
		},
	)

	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwizard_persistence_failures_total",
			Help: "Chat records that could not be written",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ChatRequests,
			CompletionDuration,
			LLMTokensUsed,
			FallbackAnswers,
			SearchResults,
			SearchFailures,
			CacheHits,
			CacheMisses,
			ContextPassages,
			PersistenceFailures,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
