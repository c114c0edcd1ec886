package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes runtime activity as prometheus metrics. It
// implements tools.ExecObserver for the executor.
type Collector struct {
	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	modelCalls     *prometheus.CounterVec
	modelDuration  prometheus.Histogram
	tokensUsed     *prometheus.CounterVec
}

// NewCollector registers the runtime metrics on the registerer;
// prometheus.DefaultRegisterer is used when nil.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skein",
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skein",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution wall-clock duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tool"}),
		modelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skein",
			Name:      "model_calls_total",
			Help:      "Model completions by model and outcome.",
		}, []string{"model", "outcome"}),
		modelDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skein",
			Name:      "model_call_duration_seconds",
			Help:      "Model completion wall-clock duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		tokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skein",
			Name:      "tokens_total",
			Help:      "Tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
	}
}

// ObserveToolExecution satisfies tools.ExecObserver.
func (c *Collector) ObserveToolExecution(name string, duration time.Duration, isError bool) {
	outcome := "success"
	if isError {
		outcome = "error"
	}
	c.toolExecutions.WithLabelValues(name, outcome).Inc()
	c.toolDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// ObserveModelCall records one completion.
func (c *Collector) ObserveModelCall(model string, duration time.Duration, promptTokens, completionTokens int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.modelCalls.WithLabelValues(model, outcome).Inc()
	c.modelDuration.Observe(duration.Seconds())
	if promptTokens > 0 {
		c.tokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
