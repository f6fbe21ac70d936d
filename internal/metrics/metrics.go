package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tickergo"

var (
	// LoopRuns counts reasoning loop runs.
	//
	// Labels:
	//   - operation: "price" or "analysis"
	//   - termination: "finished", "iteration_limit_reached", "parse_exhausted", "error"
	LoopRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "loop_runs_total",
			Help:      "Total number of reasoning loop runs.",
		},
		[]string{"operation", "termination"},
	)

	LoopIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "loop_iterations",
			Help:      "Iterations consumed per reasoning loop run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"operation"},
	)

	// Fallbacks counts fallback generations.
	//
	// Labels:
	//   - trigger: "iteration_limit_reached", "parse_exhausted", "missing_recommendation"
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "fallbacks_total",
			Help:      "Total number of fallback generations.",
		},
		[]string{"trigger"},
	)

	// ToolCalls counts tool invocations.
	//
	// Labels:
	//   - tool: "get_stock_price", "web_search"
	//   - status: "success" or "error"
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total number of tool invocations.",
		},
		[]string{"tool", "status"},
	)

	GenerateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "generate_duration_seconds",
			Help:      "Duration of LLM generation calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
)

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveGenerate records one generation call started at start.
func ObserveGenerate(start time.Time, err error) {
	GenerateDuration.WithLabelValues(Status(err)).Observe(time.Since(start).Seconds())
}
