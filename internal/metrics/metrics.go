// Package metrics exposes Prometheus counters/gauges for the crawler,
// served at /metrics. The JSON summaries at /api/status/crawler and
// /api/stats are computed from the store, not from these metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydracrawl_probes_total",
		Help: "Total probes by outcome.",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hydracrawl_queue_depth",
		Help: "Pending jobs by priority lane.",
	}, []string{"priority"})

	AnalysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydracrawl_analysis_runs_total",
		Help: "Total analysis pipeline runs by result.",
	}, []string{"result"})

	WebhookSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydracrawl_webhook_sends_total",
		Help: "Total webhook delivery attempts by result.",
	}, []string{"result"})
)
