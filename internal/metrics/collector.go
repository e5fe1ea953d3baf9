// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the orchestrator's Prometheus instruments. The token and
// cost counters are per-process diagnostics only; the authoritative running
// totals live on each session record.
type Collector struct {
	sessionsCreated     prometheus.Counter
	sessionsCompleted   *prometheus.CounterVec
	stepsTotal          *prometheus.CounterVec
	stepDuration        prometheus.Histogram
	guardrailRejections *prometheus.CounterVec
	tokensTotal         *prometheus.CounterVec
	costTotal           prometheus.Counter
	promptTokens        prometheus.Histogram
}

// NewCollector registers the webpilot instruments on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions that reached a terminal state",
		}, []string{"status"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of committed turns",
		}, []string{"kind"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "End-to-end duration of step determination",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		guardrailRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_rejections_total",
			Help:      "Total number of requests rejected before any model call",
		}, []string{"reason"}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total tokens exchanged with the model API",
		}, []string{"direction"}),
		costTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Cumulative estimated model spend in USD (advisory)",
		}),
		promptTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Estimated token size of rendered prompts",
			Buckets:   prometheus.ExponentialBuckets(128, 2, 8),
		}),
	}
}

// SessionCreated records a new session.
func (c *Collector) SessionCreated() {
	c.sessionsCreated.Inc()
}

// SessionFinished records a terminal transition.
func (c *Collector) SessionFinished(status string) {
	c.sessionsCompleted.WithLabelValues(status).Inc()
}

// StepCommitted records a committed turn and its latency.
func (c *Collector) StepCommitted(kind string, d time.Duration) {
	c.stepsTotal.WithLabelValues(kind).Inc()
	c.stepDuration.Observe(d.Seconds())
}

// GuardrailRejected records a pre-call rejection.
func (c *Collector) GuardrailRejected(reason string) {
	c.guardrailRejections.WithLabelValues(reason).Inc()
}

// Usage records model token consumption and estimated cost.
func (c *Collector) Usage(inputTokens, outputTokens int, cost float64) {
	c.tokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	c.tokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	c.costTotal.Add(cost)
}

// PromptSize records the estimated token size of a rendered prompt.
func (c *Collector) PromptSize(tokens int) {
	c.promptTokens.Observe(float64(tokens))
}
