package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("fetch_pages", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncStageResult("fetch_pages", ResultSuccess)
	pr.IncRunOutcome("success")
	pr.ObserveFetchDuration(FetchKindPage, 40*time.Millisecond, false)
	pr.IncFetchResult(FetchKindImage, "timeout")
	pr.IncImageResult("high", "reused")
	pr.SetFetchConcurrency(8)
	pr.IncFetchRetry()
	pr.IncFetchRetryExhausted()
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"dexbuilder_stage_duration_seconds",
		"dexbuilder_run_outcomes_total",
		"dexbuilder_fetch_results_total",
		"dexbuilder_image_results_total",
	} {
		if !names[want] {
			t.Fatalf("expected metric family %s, got %v", want, names)
		}
	}
}

func TestPrometheusRecorderNilRegistry(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("warning")
}
