package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	stageDuration    *prom.HistogramVec
	runDuration      prom.Histogram
	stageResults     *prom.CounterVec
	runOutcome       *prom.CounterVec
	fetchDuration    *prom.HistogramVec
	fetchResults     *prom.CounterVec
	imageResults     *prom.CounterVec
	fetchConcurrency prom.Gauge
	retries          prom.Counter
	retriesExhausted prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "dexbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual run stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "dexbuilder",
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "dexbuilder",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of individual page and image fetches",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "source"})
		pr.fetchResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "fetch_results_total",
			Help:      "Fetch results by outcome kind",
		}, []string{"kind", "outcome"})
		pr.imageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "image_results_total",
			Help:      "Image pipeline results by quality tier",
		}, []string{"tier", "outcome"})
		pr.fetchConcurrency = prom.NewGauge(prom.GaugeOpts{
			Namespace: "dexbuilder",
			Name:      "fetch_concurrency",
			Help:      "Configured fetch worker concurrency for the current run",
		})
		pr.retries = prom.NewCounter(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "fetch_retries_total",
			Help:      "Total fetch retries (transient failures)",
		})
		pr.retriesExhausted = prom.NewCounter(prom.CounterOpts{
			Namespace: "dexbuilder",
			Name:      "fetch_retry_exhausted_total",
			Help:      "Count of fetches where retries were exhausted",
		})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome, pr.fetchDuration, pr.fetchResults, pr.imageResults, pr.fetchConcurrency, pr.retries, pr.retriesExhausted)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(kind string, d time.Duration, cached bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	source := "network"
	if cached {
		source = "cache"
	}
	p.fetchDuration.WithLabelValues(kind, source).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFetchResult(kind string, outcome string) {
	if p == nil || p.fetchResults == nil {
		return
	}
	p.fetchResults.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncImageResult(tier string, outcome string) {
	if p == nil || p.imageResults == nil {
		return
	}
	p.imageResults.WithLabelValues(tier, outcome).Inc()
}

func (p *PrometheusRecorder) SetFetchConcurrency(n int) {
	if p == nil || p.fetchConcurrency == nil {
		return
	}
	p.fetchConcurrency.Set(float64(n))
}

func (p *PrometheusRecorder) IncFetchRetry() {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.Inc()
}

func (p *PrometheusRecorder) IncFetchRetryExhausted() {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.Inc()
}
