package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the counters and histograms the agent pipeline reports.
// A nil *Metrics is valid everywhere and records nothing, which keeps tests
// free of registry bookkeeping.
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	ModelCalls     prometheus.Counter
	ToolCalls      prometheus.Counter
	EvalFailures   prometheus.Counter
	TurnDuration   prometheus.Histogram
	FeedbackEvents prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_cache_hits_total",
			Help: "Semantic cache lookups answered from the cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_cache_misses_total",
			Help: "Semantic cache lookups that fell through to the model.",
		}),
		ModelCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_model_calls_total",
			Help: "Response model invocations, including tool-loop iterations.",
		}),
		ToolCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool executions requested by the response model.",
		}),
		EvalFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_evaluation_failures_total",
			Help: "Responses where at least one quality metric scored fail or errored.",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_turn_duration_seconds",
			Help:    "Wall time of one agent turn, cache hits included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		FeedbackEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_feedback_events_total",
			Help: "User feedback submissions accepted by the API.",
		}),
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) IncModelCall() {
	if m != nil {
		m.ModelCalls.Inc()
	}
}

func (m *Metrics) IncToolCall() {
	if m != nil {
		m.ToolCalls.Inc()
	}
}

func (m *Metrics) IncEvalFailure() {
	if m != nil {
		m.EvalFailures.Inc()
	}
}

func (m *Metrics) ObserveTurn(seconds float64) {
	if m != nil {
		m.TurnDuration.Observe(seconds)
	}
}

func (m *Metrics) IncFeedback() {
	if m != nil {
		m.FeedbackEvents.Inc()
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
