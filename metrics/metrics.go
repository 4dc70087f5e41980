package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalens_queries_total",
			Help: "Total number of data queries executed, by outcome.",
		},
		[]string{"outcome"},
	)

	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalens_completions_total",
			Help: "Total number of completion-service calls, by purpose.",
		},
		[]string{"purpose"},
	)

	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalens_chart_renders_total",
			Help: "Total number of chart renders, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal, CompletionsTotal, ChartRendersTotal)
}
