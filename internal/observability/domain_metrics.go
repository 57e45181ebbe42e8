package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_sessions_started_total",
			Help: "Total number of agent sessions started.",
		},
	)
	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_sessions_finished_total",
			Help: "Total number of agent sessions reaching a terminal status.",
		},
		[]string{"status"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlscout_stage_duration_seconds",
			Help:    "Workflow stage execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	approvalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_approvals_total",
			Help: "Human approval decisions by outcome.",
		},
		[]string{"decision"},
	)
	unsafeSQLTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_unsafe_sql_total",
			Help: "Total number of generated queries rejected by the keyword screen.",
		},
	)
	llmFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_llm_failures_total",
			Help: "Language model call failures by call kind.",
		},
		[]string{"call"},
	)
)

func init() {
	prometheus.MustRegister(
		sessionsStartedTotal,
		sessionsFinishedTotal,
		stageDurationSeconds,
		approvalsTotal,
		unsafeSQLTotal,
		llmFailuresTotal,
	)
}

func IncrementSessionStarted() {
	sessionsStartedTotal.Inc()
}

func IncrementSessionFinished(status string) {
	sessionsFinishedTotal.WithLabelValues(status).Inc()
}

func ObserveStageDuration(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementApproval(approved bool) {
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	approvalsTotal.WithLabelValues(decision).Inc()
}

func IncrementUnsafeSQL() {
	unsafeSQLTotal.Inc()
}

func IncrementLLMFailure(call string) {
	llmFailuresTotal.WithLabelValues(call).Inc()
}
