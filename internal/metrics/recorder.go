package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Fetch kinds label downloads by what is being fetched.
const (
	FetchKindIndex = "index"
	FetchKindPage  = "page"
	FetchKindImage = "image"
)

// Recorder defines observability hooks for run and stage metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil receivers
// when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: success|warning|failed|canceled
	ObserveFetchDuration(kind string, d time.Duration, cached bool)
	IncFetchResult(kind string, outcome string) // outcome: success|cache_hit|error kind
	IncImageResult(tier string, outcome string) // outcome: built|reused|failed
	SetFetchConcurrency(n int)
	IncFetchRetry()
	IncFetchRetryExhausted()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)       {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                 {}
func (NoopRecorder) IncStageResult(string, ResultLabel)               {}
func (NoopRecorder) IncRunOutcome(string)                             {}
func (NoopRecorder) ObserveFetchDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncFetchResult(string, string)                    {}
func (NoopRecorder) IncImageResult(string, string)                    {}
func (NoopRecorder) SetFetchConcurrency(int)                          {}
func (NoopRecorder) IncFetchRetry()                                   {}
func (NoopRecorder) IncFetchRetryExhausted()                          {}
