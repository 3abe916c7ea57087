package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "tasks",
			Name:      "started_total",
			Help:      "Total completion tasks registered",
		},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Tasks that reached a terminal state, by outcome",
		},
		[]string{"state"},
	)

	tasksInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gend",
			Subsystem: "tasks",
			Name:      "inflight",
			Help:      "Tasks currently pending or running",
		},
	)

	preprocessFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "grammar",
			Name:      "preprocess_failures_total",
			Help:      "Grammar/pattern inputs the preprocessor rejected",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksStarted, tasksFinished, tasksInflight, preprocessFailures)
}
