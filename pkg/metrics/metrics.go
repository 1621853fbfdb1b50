package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	slidesmith = "slidesmith"

	// Row metrics
	rowsTotal = "rows_total"

	// Stage metrics
	stageDurationSeconds = "stage_duration_seconds"
	adapterRetriesTotal  = "adapter_retries_total"

	// Job metrics
	finalizeTotal  = "finalize_total"
	JobStatusCount = "job_status_count"
	RowStatusCount = "row_status_count"
	DecksCount     = "decks_count"

	// Labels
	statusLabel  = "status"
	kindLabel    = "kind"
	stageLabel   = "stage"
	outcomeLabel = "outcome"
)

/**
* Metrics definition
**/
var rowsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: slidesmith,
		Name:      rowsTotal,
		Help:      "number of rows that reached a terminal status",
	},
	[]string{statusLabel, kindLabel},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: slidesmith,
		Name:      stageDurationSeconds,
		Help:      "duration of each pipeline stage, including adapter retries",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{stageLabel, outcomeLabel},
)

var adapterRetriesMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: slidesmith,
		Name:      adapterRetriesTotal,
		Help:      "number of adapter calls retried after a transient failure",
	},
	[]string{stageLabel},
)

var finalizeTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: slidesmith,
		Name:      finalizeTotal,
		Help:      "number of job finalizations",
	},
	[]string{outcomeLabel},
)

var jobStatusCountMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: slidesmith,
		Name:      JobStatusCount,
		Help:      "metrics to record the number of jobs in each status",
	},
	[]string{statusLabel},
)

var rowStatusCountMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: slidesmith,
		Name:      RowStatusCount,
		Help:      "metrics to record the number of rows in each status",
	},
	[]string{statusLabel},
)

var decksCountMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: slidesmith,
		Name:      DecksCount,
		Help:      "number of decks recorded in the history",
	},
)

func IncreaseRowsTotalMetric(status, kind string) {
	rowsTotalMetric.With(prometheus.Labels{
		statusLabel: status,
		kindLabel:   kind,
	}).Inc()
}

func ObserveStageDuration(stage, outcome string, seconds float64) {
	stageDurationMetric.With(prometheus.Labels{
		stageLabel:   stage,
		outcomeLabel: outcome,
	}).Observe(seconds)
}

func IncreaseAdapterRetriesMetric(stage string) {
	adapterRetriesMetric.With(prometheus.Labels{stageLabel: stage}).Inc()
}

func IncreaseFinalizeTotalMetric(outcome string) {
	finalizeTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func UpdateJobStatusMetric(status string, count int) {
	jobStatusCountMetric.With(prometheus.Labels{statusLabel: status}).Set(float64(count))
}

func UpdateRowStatusMetric(status string, count int) {
	rowStatusCountMetric.With(prometheus.Labels{statusLabel: status}).Set(float64(count))
}

func UpdateDecksCountMetric(count int) {
	decksCountMetric.Set(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(rowsTotalMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(adapterRetriesMetric)
	prometheus.MustRegister(finalizeTotalMetric)
	prometheus.MustRegister(jobStatusCountMetric)
	prometheus.MustRegister(rowStatusCountMetric)
	prometheus.MustRegister(decksCountMetric)
}
