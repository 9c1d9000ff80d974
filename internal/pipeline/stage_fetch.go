package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/fetch"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/parse"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

// stageFetchPages downloads the index, then fetches and parses every listed
// entry page with the configured worker count. Entries that fail to fetch or
// parse are recorded as warnings and skipped; the stage is fatal only when
// the index itself is unusable or nothing parses.
func stageFetchPages(ctx context.Context, rs *RunState) error {
	r := rs.Runner

	t0 := time.Now()
	data, cached, err := r.client.GetOrigin(ctx, r.cfg.Source.IndexURL, fetch.ProfileDocument)
	r.recorder.ObserveFetchDuration(metrics.FetchKindIndex, time.Since(t0), cached)
	if err != nil {
		r.recorder.IncFetchResult(metrics.FetchKindIndex, fetchOutcome(err))
		if ctx.Err() != nil {
			return newCanceledStageError(StageFetchPages, ctx.Err())
		}
		return newFatalStageError(StageFetchPages, fmt.Errorf("fetch index: %w", err))
	}
	r.recorder.IncFetchResult(metrics.FetchKindIndex, fetchSuccess(cached))

	idx, err := parse.ParseIndex(data, r.cfg.Source.IndexURL)
	if err != nil {
		return newFatalStageError(StageFetchPages, fmt.Errorf("parse index: %w", err))
	}
	rs.Index = idx
	rs.Report.IndexEntries = idx.Len()
	r.log.Info("index parsed", logfields.Count(idx.Len()), logfields.URL(r.cfg.Source.IndexURL))

	parser := parse.NewParser(parse.Options{
		MaxBodySections: r.cfg.Render.MaxBodySections,
		HighQuality:     r.cfg.Images.Quality == config.QualityHigh,
	})

	ids := idx.IDs()
	workers := r.cfg.Fetch.Workers
	if workers > len(ids) {
		workers = len(ids)
	}
	if workers < 1 {
		workers = 1
	}
	r.recorder.SetFetchConcurrency(workers)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entries []*catalog.Entry
		failed  int
	)
	tasks := make(chan catalog.EntryID)
	worker := func() {
		defer wg.Done()
		for id := range tasks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			url, _ := idx.PageURL(id)
			t0 := time.Now()
			body, cached, err := r.client.GetOrigin(ctx, url, fetch.ProfileDocument)
			r.recorder.ObserveFetchDuration(metrics.FetchKindPage, time.Since(t0), cached)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.recorder.IncFetchResult(metrics.FetchKindPage, fetchOutcome(err))
				mu.Lock()
				failed++
				rs.Report.AddEntryIssue(report.IssueFetchFailure, string(StageFetchPages), report.SeverityWarning,
					id.Display(), fmt.Sprintf("fetch %s: %v", url, err), nil)
				mu.Unlock()
				r.log.Warn("entry fetch failed", logfields.Entry(id.Display()), logfields.URL(url), logfields.Error(err))
				continue
			}
			r.recorder.IncFetchResult(metrics.FetchKindPage, fetchSuccess(cached))

			entry, perr := parser.ParseEntry(body, url)
			mu.Lock()
			rs.Report.FetchedPages++
			if perr != nil {
				failed++
				rs.Report.AddEntryIssue(report.IssueParseFailure, string(StageFetchPages), report.SeverityWarning,
					id.Display(), fmt.Sprintf("parse %s: %v", url, perr), nil)
				mu.Unlock()
				r.log.Warn("entry parse failed", logfields.Entry(id.Display()), logfields.URL(url), logfields.Error(perr))
				continue
			}
			entries = append(entries, entry)
			mu.Unlock()
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for _, id := range ids {
		select {
		case <-ctx.Done():
		case tasks <- id:
			continue
		}
		break
	}
	close(tasks)
	wg.Wait()

	if ctx.Err() != nil {
		return newCanceledStageError(StageFetchPages, ctx.Err())
	}

	catalog.SortEntries(entries)
	rs.Entries = entries
	rs.Report.ParsedEntries = len(entries)
	rs.Report.FailedEntries = failed

	if len(entries) == 0 {
		return newFatalStageError(StageFetchPages, fmt.Errorf("%w: every entry page failed", ErrNoEntries))
	}
	if failed > 0 {
		return newWarnStageError(StageFetchPages, fmt.Errorf("%w: %d of %d entries failed", ErrFetch, failed, idx.Len()))
	}
	return nil
}

// fetchOutcome maps a fetch failure to its metrics label.
func fetchOutcome(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "error"
}

func fetchSuccess(cached bool) string {
	if cached {
		return "cache_hit"
	}
	return "success"
}
