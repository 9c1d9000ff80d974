// Package pipeline orchestrates one dictionary build run as an ordered
// sequence of stages: fetch and parse the catalog, resolve cross-references
// over the full batch, build image artifacts, render entry fragments, and
// assemble the bundle. Stage failures are classified; warnings degrade the
// run outcome while fatal errors abort it with the previous output intact.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/dexbuilder/internal/cache"
	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/events"
	"git.home.luguber.info/inful/dexbuilder/internal/fetch"
	"git.home.luguber.info/inful/dexbuilder/internal/images"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
	"git.home.luguber.info/inful/dexbuilder/internal/retry"
)

// Runner executes the build pipeline against one configuration and cache
// store. Construct with NewRunner, optionally inject a recorder and event
// publisher, then call Run once per build.
type Runner struct {
	cfg      *config.Config
	store    cache.Store
	client   *fetch.Client
	images   *images.Processor
	recorder metrics.Recorder
	events   *events.Publisher
	log      *slog.Logger
}

// NewRunner creates a Runner with no-op instrumentation.
func NewRunner(cfg *config.Config, store cache.Store) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		recorder: metrics.NoopRecorder{},
		log:      slog.Default().With("component", "pipeline"),
	}
}

// SetRecorder injects a metrics recorder (optional). Returns the runner for chaining.
func (r *Runner) SetRecorder(rec metrics.Recorder) *Runner {
	if rec == nil {
		r.recorder = metrics.NoopRecorder{}
		return r
	}
	r.recorder = rec
	return r
}

// SetPublisher injects an event publisher (optional, nil-safe). Returns the
// runner for chaining.
func (r *Runner) SetPublisher(p *events.Publisher) *Runner {
	r.events = p
	return r
}

// Run executes the full pipeline and returns the run report. The report is
// non-nil even when the run fails; the error is the aborting stage error, or
// nil when the run completed (possibly with warnings).
func (r *Runner) Run(ctx context.Context) (*report.RunReport, error) {
	runID := uuid.NewString()
	rep := report.New(runID, string(r.cfg.Images.Quality))
	log := r.log.With(logfields.RunID(runID))

	r.client = fetch.New(fetch.Options{
		Store:      r.store,
		Policy:     retry.FromConfig(r.cfg.Fetch),
		UserAgent:  r.cfg.Source.UserAgent,
		SiteRoot:   r.cfg.Source.SiteRoot,
		Politeness: config.Duration(r.cfg.Fetch.PolitenessDelay, 0),
		Timeout:    config.Duration(r.cfg.Fetch.Timeout, 0),
		Recorder:   r.recorder,
	})
	r.images = images.NewProcessor(r.cfg.Images.Quality, r.store)

	log.Info("Starting dictionary build",
		logfields.URL(r.cfg.Source.IndexURL),
		logfields.Tier(string(r.cfg.Images.Quality)),
		slog.String("config", r.cfg.Snapshot()))
	if err := r.events.RunStarted(&events.RunStartedEvent{
		RunID:    runID,
		Quality:  string(r.cfg.Images.Quality),
		IndexURL: r.cfg.Source.IndexURL,
	}); err != nil {
		log.Warn("Failed to publish run start event", logfields.Error(err))
	}

	rs := newRunState(r, rep)
	stages := NewPipeline().
		Add(StageFetchPages, stageFetchPages).
		Add(StageResolveRefs, stageResolveRefs).
		Add(StageBuildImages, stageBuildImages).
		Add(StageRenderEntries, stageRenderEntries).
		Add(StageAssemble, stageAssemble).
		Build()

	runErr := runStages(ctx, rs, stages)

	rep.Finish()
	r.recorder.ObserveRunDuration(rep.End.Sub(rep.Start))
	r.recorder.IncRunOutcome(rep.Outcome)

	// Persist report (best effort) inside the output directory, on failure too.
	if err := rep.Persist(r.cfg.Output.Directory); err != nil {
		log.Warn("Failed to persist run report", logfields.Error(err))
	}
	r.publishCompletion(rep)

	if runErr != nil {
		log.Error("Dictionary build failed", logfields.Error(runErr), slog.String("outcome", rep.Outcome))
		return rep, runErr
	}
	log.Info("Dictionary build completed", slog.String("summary", rep.Summary()))
	return rep, nil
}

// publishCompletion forwards the report to the event publisher. Publish
// failures degrade to log warnings; an unreachable broker must not change
// the run outcome.
func (r *Runner) publishCompletion(rep *report.RunReport) {
	for _, is := range rep.Issues {
		if err := r.events.Issue(&events.IssueEvent{
			RunID:    rep.RunID,
			Code:     string(is.Code),
			Stage:    is.Stage,
			Severity: string(is.Severity),
			Message:  is.Message,
			Entry:    is.Entry,
		}); err != nil {
			r.log.Warn("Failed to publish issue event", logfields.Error(err))
			break
		}
	}
	if err := r.events.RunCompleted(&events.RunCompletedEvent{
		RunID:         rep.RunID,
		Quality:       rep.Quality,
		Outcome:       rep.Outcome,
		IndexEntries:  rep.IndexEntries,
		ParsedEntries: rep.ParsedEntries,
		FailedEntries: rep.FailedEntries,
		ImagesBuilt:   rep.ImagesBuilt,
		ImagesReused:  rep.ImagesReused,
		ImagesFailed:  rep.ImagesFailed,
		Errors:        len(rep.Errors),
		Warnings:      len(rep.Warnings),
		DocumentPath:  rep.DocumentPath,
		DurationMS:    rep.End.Sub(rep.Start).Milliseconds(),
	}); err != nil {
		r.log.Warn("Failed to publish run completion event", logfields.Error(err))
	}
}

// runStages executes stages in order, recording timing and stopping on first
// fatal error.
func runStages(ctx context.Context, rs *RunState, stages []StageDef) error {
	rec := rs.Runner.recorder
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.Name, ctx.Err())
			rs.Report.StageErrorKinds[string(st.Name)] = string(se.Kind)
			rs.Report.AddIssue(report.IssueCanceled, string(st.Name), report.SeverityError, se.Error(), false, se)
			rec.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return se
		default:
		}
		t0 := time.Now()
		err := st.Fn(ctx, rs)
		dur := time.Since(t0)
		rs.Report.StageDurations[string(st.Name)] = dur
		rec.ObserveStageDuration(string(st.Name), dur)

		out := classifyStageResult(st.Name, err)
		if out.Error != nil {
			rs.Report.StageErrorKinds[string(st.Name)] = string(out.Error.Kind)
			rs.Report.AddIssue(out.IssueCode, string(out.Stage), out.Severity, out.Error.Error(), out.Transient, out.Error)
		}
		rec.IncStageResult(string(st.Name), resultLabel(out.Result))
		if out.Abort {
			return out.Error
		}
	}
	return nil
}
