package decision

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precog",
		Subsystem: "decision",
		Name:      "requests_total",
		Help:      "Scoring API calls by outcome (ok, fail_open).",
	}, []string{"outcome"})

	decisionResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precog",
		Subsystem: "decision",
		Name:      "results_total",
		Help:      "Decisions returned to callers, including fail-open ones.",
	}, []string{"decision"})

	decisionFailOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precog",
		Subsystem: "decision",
		Name:      "fail_open_total",
		Help:      "Fail-open substitutions by reason.",
	}, []string{"reason"})

	decisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "precog",
		Subsystem: "decision",
		Name:      "duration_seconds",
		Help:      "Scoring API call latency in seconds.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2, 2.5},
	})

	authTypeUnmappedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precog",
		Subsystem: "authtype",
		Name:      "unmapped_total",
		Help:      "Logins whose protocol has no authentication type.",
	}, []string{"protocol"})
)

func init() {
	prometheus.MustRegister(
		decisionRequestsTotal,
		decisionResultsTotal,
		decisionFailOpenTotal,
		decisionDuration,
		authTypeUnmappedTotal,
	)
}
