package driver

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	stageLeaf  = "leaf"
	stageMerge = "merge"
)

// Metrics holds the Prometheus metrics of a pipeline.
type Metrics struct {
	Pages          *prometheus.CounterVec
	Rows           *prometheus.CounterVec
	ExchangeBytes  prometheus.Counter
	MergedPartials prometheus.Counter
	StageDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	pages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggr_pipeline_pages_total",
		Help: "Pages consumed per stage",
	}, []string{"stage"})

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggr_pipeline_rows_total",
		Help: "Rows consumed per stage",
	}, []string{"stage"})

	exchangeBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggr_pipeline_exchange_bytes_total",
		Help: "Encoded bytes shipped from the leaf stage to the merge stage",
	})

	mergedPartials := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggr_pipeline_merged_partials_total",
		Help: "Partial results merged by the merge stage",
	})

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggr_pipeline_stage_duration_seconds",
		Help:    "Wall time of one stage task",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	reg.MustRegister(pages, rows, exchangeBytes, mergedPartials, stageDuration)

	return &Metrics{
		Pages:          pages,
		Rows:           rows,
		ExchangeBytes:  exchangeBytes,
		MergedPartials: mergedPartials,
		StageDuration:  stageDuration,
	}
}
