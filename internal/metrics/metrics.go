package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	CacheLookupHit   CacheLookupOutcome = "hit"
	CacheLookupMiss  CacheLookupOutcome = "miss"
	CacheLookupError CacheLookupOutcome = "error"
)

// FetchOutcome captures how a single upstream attempt ended.
type FetchOutcome string

const (
	FetchOutcomeSuccess   FetchOutcome = "success"
	FetchOutcomeRetry     FetchOutcome = "retry"
	FetchOutcomeRejected  FetchOutcome = "rejected"
	FetchOutcomeExhausted FetchOutcome = "exhausted"
)

// DistributeOutcome captures how a distribution request ended.
type DistributeOutcome string

const (
	DistributeOutcomeSuccess      DistributeOutcome = "success"
	DistributeOutcomePartial      DistributeOutcome = "partial_failure"
	DistributeOutcomeTotalFailure DistributeOutcome = "total_failure"
)

// Recorder publishes Prometheus metrics for the acquisition pipeline. A nil
// Recorder is valid and records nothing, so components can run uninstrumented
// in tests.
type Recorder struct {
	gatherer prometheus.Gatherer

	cacheLookups *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	distributes  *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// fighting over the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Question cache lookups by outcome.",
	}, []string{"outcome"})

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Subsystem: "upstream",
		Name:      "fetch_attempts_total",
		Help:      "Upstream fetch attempts by outcome.",
	}, []string{"outcome"})

	distributes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Subsystem: "distributor",
		Name:      "requests_total",
		Help:      "Distribution requests by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(cacheLookups, fetches, distributes)

	return &Recorder{
		gatherer:     reg,
		cacheLookups: cacheLookups,
		fetches:      fetches,
		distributes:  distributes,
	}
}

func (r *Recorder) ObserveCacheLookup(outcome CacheLookupOutcome) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) ObserveFetch(outcome FetchOutcome) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) ObserveDistribute(outcome DistributeOutcome) {
	if r == nil {
		return
	}
	r.distributes.WithLabelValues(string(outcome)).Inc()
}

// Handler serves the recorder's registry over HTTP.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
