package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labctl",
		Name:      "queries_total",
		Help:      "Queries executed, by operation and status.",
	}, []string{"op", "status"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "labctl",
		Name:      "query_duration_seconds",
		Help:      "Query execution time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	booksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labctl",
		Name:      "book_runs_total",
		Help:      "Book runs, by book and status.",
	}, []string{"book", "status"})

	checksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labctl",
		Name:      "checks_total",
		Help:      "Data checks evaluated, by status.",
	}, []string{"status"})

	reporterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labctl",
		Name:      "reporter_errors_total",
		Help:      "Reporter failures, by reporter.",
	}, []string{"reporter"})
)
