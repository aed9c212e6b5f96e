package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReviewsTotal counts the total number of reviews processed, labeled by status.
	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_requests_total",
		Help: "The total number of processed review requests",
	}, []string{"status"}) // status: started, success, failed, cancelled

	// StageDuration measures per-stage wall time.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "review_stage_duration_seconds",
		Help:    "Time taken by each review pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage", "result"}) // stage: plan, files, crossfile, report

	// LLMCalls counts LLM gateway invocations.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_calls_total",
		Help: "The total number of LLM gateway calls",
	}, []string{"backend", "mode", "status"}) // mode: text, structured

	// ParseRepairs counts LLM-assisted JSON repair attempts.
	ParseRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "response_parse_repairs_total",
		Help: "The total number of LLM-assisted response repairs",
	}, []string{"schema", "status"}) // status: repaired, exhausted

	// IndexOperations counts vector index mutations.
	IndexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "index_operations_total",
		Help: "The total number of index operations",
	}, []string{"operation", "status"}) // operation: index, update, delete, delete_branch, pr_index

	// ChunksIndexed counts chunks written to the vector store.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_chunks_total",
		Help: "The total number of chunks upserted into the vector store",
	})

	// RetrievalQueries counts context retrieval requests.
	RetrievalQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retrieval_queries_total",
		Help: "The total number of PR context retrievals",
	}, []string{"status"})
)
